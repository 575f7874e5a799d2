// Package reference searches a cohort for the image that best represents
// it: every member is registered to a candidate, the deformation fields are
// averaged, and the member closest to the average becomes the next
// candidate until the choice no longer changes.
package reference

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kneemorph/internal/models"
	"kneemorph/pkg/workerpool"
)

// DefaultMaxIterations caps the search
const DefaultMaxIterations = 10

// State is the phase of the search
type State int

const (
	Initializing State = iota
	Iterating
	Converged
	Exhausted
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Service is what the search needs from a registration engine
type Service interface {
	// PrepareReference materializes the candidate of ctx in ctx.Folder(),
	// including its dilated mask at ctx.DilatedMaskPath()
	PrepareReference(ctx models.ConvergenceIterationContext) error

	// VectorField registers m onto the candidate of ctx and returns the
	// path of the resulting deformation field
	VectorField(ctx models.ConvergenceIterationContext, m models.CohortMember) (string, error)
}

// Options configure a search
type Options struct {
	// MaxIterations caps the search; zero means DefaultMaxIterations
	MaxIterations int

	// Workers registers that many members at once
	Workers int

	// Seed is the first candidate; nil means the first cohort member
	Seed *models.CohortMember

	// Workspace receives one folder per iteration
	Workspace string

	// DilateRadius grows the candidate mask that restricts the distances
	DilateRadius int

	// Progress is called after every registered member
	Progress func(done, total int)

	Logger logrus.FieldLogger
}

// Iteration records one round of the search
type Iteration struct {
	Number      int
	Reference   models.CohortMember
	Next        models.CohortMember
	MinDistance float64
	Distances   []float64
}

// Result is the outcome of a search. Reference is the final candidate; when
// State is Exhausted it is the last candidate picked, not a fixed point.
type Result struct {
	State     State
	Reference models.CohortMember
	History   []Iteration
}

// Loop runs the search
type Loop struct {
	Service Service
	Options Options

	state State
}

// NewLoop returns a search using s
func NewLoop(s Service, opts Options) *Loop {
	return &Loop{Service: s, Options: opts}
}

// State is the current phase
func (l *Loop) State() State { return l.state }

// Run searches the cohort. Iterations run one after the other; inside an
// iteration members are registered in parallel and all of them must
// succeed. Reaching the iteration cap is reported through Result.State,
// not as an error.
func (l *Loop) Run(cohort []models.CohortMember) (*Result, error) {
	l.state = Initializing
	log := l.logger()

	if len(cohort) == 0 {
		return nil, errors.New("reference search needs at least one cohort member")
	}
	for _, m := range cohort {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}

	current := cohort[0]
	if l.Options.Seed != nil {
		current = *l.Options.Seed
	}
	maxIter := l.Options.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	res := &Result{}
	l.state = Iterating
	for it := 1; it <= maxIter; it++ {
		ctx := models.ConvergenceIterationContext{
			Iteration:    it,
			Reference:    current,
			Workspace:    l.Options.Workspace,
			DilateRadius: l.Options.DilateRadius,
		}
		itLog := log.WithFields(logrus.Fields{"iteration": it, "reference": current.Name})

		iter, err := l.iterate(ctx, cohort)
		if err != nil {
			res.Reference = current
			return res, errors.Wrapf(err, "iteration %d", it)
		}
		res.History = append(res.History, iter)
		itLog.WithFields(logrus.Fields{
			"next":     iter.Next.Name,
			"distance": iter.MinDistance,
		}).Info("Reference iteration done")

		if sameMember(iter.Next, current) {
			l.state = Converged
			res.State, res.Reference = Converged, current
			return res, nil
		}
		current = iter.Next
	}

	log.WithField("iterations", maxIter).Warn("Reference search did not converge")
	l.state = Exhausted
	res.State, res.Reference = Exhausted, current
	return res, nil
}

func (l *Loop) iterate(ctx models.ConvergenceIterationContext, cohort []models.CohortMember) (Iteration, error) {
	if err := ctx.Validate(); err != nil {
		return Iteration{}, err
	}
	if err := l.Service.PrepareReference(ctx); err != nil {
		return Iteration{}, errors.Wrap(err, "preparing reference")
	}

	pool := workerpool.Pool{Workers: l.Options.Workers, Progress: l.Options.Progress}
	fields, err := workerpool.Run(pool, "vector field", cohort, memberName,
		func(m models.CohortMember) (string, error) {
			return l.Service.VectorField(ctx, m)
		})
	if err != nil {
		return Iteration{}, err
	}

	distances, err := Distances(fields, ctx.DilatedMaskPath())
	if err != nil {
		return Iteration{}, err
	}
	best := argmin(distances)
	return Iteration{
		Number:      ctx.Iteration,
		Reference:   ctx.Reference,
		Next:        cohort[best],
		MinDistance: distances[best],
		Distances:   distances,
	}, nil
}

// argmin returns the first index of the smallest value
func argmin(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] < v[best] {
			best = i
		}
	}
	return best
}

func sameMember(a, b models.CohortMember) bool {
	return a.ImagePath() == b.ImagePath()
}

func memberName(m models.CohortMember) string { return m.Name }

func (l *Loop) logger() logrus.FieldLogger {
	if l.Options.Logger != nil {
		return l.Options.Logger
	}
	lg := logrus.New()
	lg.SetOutput(io.Discard)
	return lg
}
