package registration

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kneemorph/pkg/volume"
)

// Default output names of the executables
const (
	elastixResult     = "result.0.mha"
	elastixTransform  = "TransformParameters.0.txt"
	transformixResult = "result.mha"
	deformationField  = "deformationField.mha"
)

// Params are the elastix parameter files of every stage
type Params struct {
	Rigid      string
	Similarity string
	Spline     string

	InverseRigid      string
	InverseSimilarity string
	InverseSpline     string
}

// runner executes a tool; tests replace it with a fake
type runner func(tool string, args ...string) error

// Engine locates the executables and runs them
type Engine struct {
	Elastix     string
	Transformix string
	Params      Params
	Logger      logrus.FieldLogger

	run runner
}

// NewEngine returns an engine running the given executables
func NewEngine(elastix, transformix string, params Params, logger logrus.FieldLogger) *Engine {
	e := &Engine{Elastix: elastix, Transformix: transformix, Params: params, Logger: logger}
	e.run = e.exec
	return e
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (e *Engine) exec(tool string, args ...string) error {
	cmd := exec.Command(tool, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		e.logger().WithFields(logrus.Fields{
			"tool":   tool,
			"output": string(out),
		}).Warn("External tool failed")
		return errors.Wrapf(err, "running %s", tool)
	}
	return nil
}

// step runs one tool invocation that writes produced into folder, then
// moves it to dest. Stale outputs are removed first so that a failed run
// can never leave an older result in place.
func (e *Engine) step(tool, name, folder, produced, dest string, args ...string) error {
	if e.run == nil {
		e.run = e.exec
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", folder)
	}
	src := filepath.Join(folder, produced)
	if err := removeStale(src, dest); err != nil {
		return err
	}

	e.logger().WithFields(logrus.Fields{"tool": filepath.Base(tool), "step": name}).Debug("Running registration step")
	runErr := e.run(tool, args...)
	if _, err := os.Stat(src); err != nil || runErr != nil {
		return &ServiceFailure{Tool: filepath.Base(tool), Step: name, Output: src, Err: runErr}
	}
	if err := os.Rename(src, dest); err != nil {
		return errors.Wrapf(err, "%s: renaming %s", name, src)
	}
	return nil
}

// register runs elastix with moving onto the reference
func (e *Engine) register(name, param, moving, image, transform string, p Paths) error {
	args := []string{
		"-f", abs(p.Reference),
		"-fMask", abs(p.ReferenceMask),
		"-m", abs(moving),
		"-p", abs(param),
		"-out", abs(p.Folder),
	}
	if err := removeStale(filepath.Join(p.Folder, elastixTransform), transform); err != nil {
		return err
	}
	if err := e.step(e.Elastix, name, p.Folder, elastixResult, image, args...); err != nil {
		return err
	}
	src := filepath.Join(p.Folder, elastixTransform)
	if _, err := os.Stat(src); err != nil {
		return &ServiceFailure{Tool: filepath.Base(e.Elastix), Step: name, Output: src}
	}
	return errors.Wrapf(os.Rename(src, transform), "%s: renaming %s", name, src)
}

// invert estimates the inverse of forward by registering the reference
// onto itself starting from forward, then rewrites the result so that it
// can be applied on its own
func (e *Engine) invert(name string, stage Stage, param, forward, inverse, modified string, p Paths) error {
	args := []string{
		"-f", abs(p.Reference),
		"-fMask", abs(p.ReferenceMask),
		"-m", abs(p.Reference),
		"-p", abs(param),
		"-out", abs(p.InverseFolder),
		"-t0", abs(forward),
	}
	if err := e.step(e.Elastix, name, p.InverseFolder, elastixTransform, inverse, args...); err != nil {
		return err
	}
	return ModifyTransformation(inverse, modified, stage, p.Size, p.Spacing)
}

// warp applies transform to input with transformix
func (e *Engine) warp(name, input, transform, output string, p Paths) error {
	args := []string{
		"-in", abs(input),
		"-tp", abs(transform),
		"-out", abs(p.InverseFolder),
	}
	return e.step(e.Transformix, name, p.InverseFolder, transformixResult, output, args...)
}

// vectorField writes the deformation field of transform
func (e *Engine) vectorField(transform string, p Paths) error {
	args := []string{
		"-def", "all",
		"-tp", abs(transform),
		"-out", abs(p.Folder),
	}
	return e.step(e.Transformix, "vector field", p.Folder, deformationField, p.VectorField, args...)
}

// PrepareReference writes the dilated mask and the level set of a
// reference mask. Existing files are kept.
func (e *Engine) PrepareReference(f ReferenceFiles) error {
	var mask *volume.Mask
	load := func() error {
		if mask != nil {
			return nil
		}
		var err error
		mask, err = volume.ReadMask(f.Mask)
		return err
	}

	if !exists(f.DilatedMask) {
		if err := load(); err != nil {
			return err
		}
		if err := volume.WriteMask(f.DilatedMask, mask.Dilate(f.DilateRadius)); err != nil {
			return err
		}
	}
	if !exists(f.Levelset) {
		if err := load(); err != nil {
			return err
		}
		if err := volume.WriteField(f.Levelset, mask.LevelSet()); err != nil {
			return err
		}
	}
	return nil
}

func removeStale(paths ...string) error {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing stale %s", path)
		}
	}
	return nil
}

func abs(path string) string {
	if a, err := filepath.Abs(path); err == nil {
		return a
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
