// Package morphology runs the per-subject stages of the cartilage
// morphology pipeline over a cohort: surface separation and flattening,
// thickness and volume. Every stage reads and writes the files named by
// models.Subject, so stages can run in separate invocations.
package morphology

import (
	"errors"
	"io"
	"io/fs"

	"github.com/golang/geo/r3"
	"github.com/sirupsen/logrus"

	"kneemorph/pkg/matrixio"
	"kneemorph/pkg/workerpool"
)

// Stage names used in logs and batch failures
const (
	StageSeparation = "separation"
	StageThickness  = "thickness"
	StageVolume     = "volume"
)

// MissingCompanionDataError is returned when a stage needs a file an
// earlier stage should have written
type MissingCompanionDataError struct {
	Subject string
	Path    string
}

func (e *MissingCompanionDataError) Error() string {
	return "subject " + e.Subject + ": missing " + e.Path + ", run the separation stage first"
}

// Pipeline runs stages over many subjects at once
type Pipeline struct {
	// Workers is the number of subjects processed concurrently
	Workers int

	// SliceCores is the number of goroutines used inside one subject
	// when separating slices
	SliceCores int

	// Progress is called after every finished subject
	Progress func(done, total int)

	Logger logrus.FieldLogger
}

func (p *Pipeline) pool() workerpool.Pool {
	return workerpool.Pool{Workers: p.Workers, Progress: p.Progress}
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Logger != nil {
		return p.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// missingAsCompanion reports a stage input that does not exist as
// MissingCompanionDataError so the stage ordering is visible to the caller
func missingAsCompanion(subject, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &MissingCompanionDataError{Subject: subject, Path: path}
	}
	return err
}

func readRows(subject, path string) ([][]float64, error) {
	rows, err := matrixio.Load(path)
	return rows, missingAsCompanion(subject, path, err)
}

func readPoints(subject, path string) ([]r3.Vector, error) {
	points, err := matrixio.ReadPoints(path)
	return points, missingAsCompanion(subject, path, err)
}

func readColumn(subject, path string) ([]float64, error) {
	values, err := matrixio.ReadColumn(path)
	return values, missingAsCompanion(subject, path, err)
}
