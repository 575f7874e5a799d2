// Package workerpool runs per-subject work on a fixed number of goroutines
// and collects every outcome before returning.
package workerpool

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Failure is one task that returned an error
type Failure struct {
	Index   int
	Subject string
	Stage   string
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Stage, f.Subject, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// BatchError lists the failed tasks of a batch; the results of the other
// tasks are still returned alongside it
type BatchError struct {
	Failures []Failure
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d of the batch failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes each failure to errors.Is and errors.As
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Subjects lists the failed subjects in input order
func (e *BatchError) Subjects() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Subject
	}
	return out
}

// Pool describes how a batch is run
type Pool struct {
	// Workers is the number of concurrent tasks; zero means one per CPU
	Workers int

	// Progress, when set, is called once per finished task from the
	// collecting goroutine
	Progress func(done, total int)
}

type result[O any] struct {
	index int
	out   O
	err   error
}

// Run applies fn to every input and waits for all of them. Results are in
// input order; the result of a failed task is the zero value. A failing
// task never stops its siblings. The returned error is nil or a
// *BatchError.
func Run[I, O any](p Pool, stage string, inputs []I, subject func(I) string, fn func(I) (O, error)) ([]O, error) {
	total := len(inputs)
	outputs := make([]O, total)
	if total == 0 {
		return outputs, nil
	}

	workers := p.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, total)

	jobs := make(chan int)
	resultChan := make(chan result[O])

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out, err := fn(inputs[i])
				resultChan <- result[O]{index: i, out: out, err: err}
			}
		}()
	}
	go func() {
		for i := range inputs {
			jobs <- i
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var failures []Failure
	done := 0
	for res := range resultChan {
		done++
		if res.err != nil {
			failures = append(failures, Failure{
				Index:   res.index,
				Subject: subject(inputs[res.index]),
				Stage:   stage,
				Err:     res.err,
			})
		} else {
			outputs[res.index] = res.out
		}
		if p.Progress != nil {
			p.Progress(done, total)
		}
	}

	if len(failures) == 0 {
		return outputs, nil
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
	return outputs, &BatchError{Failures: failures}
}
