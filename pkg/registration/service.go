package registration

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kneemorph/internal/models"
)

// ReferenceService registers cohort members onto the candidate of a
// reference search iteration
type ReferenceService struct {
	Registrar Registrar
	Logger    logrus.FieldLogger
}

// NewReferenceService returns a service running the steps of r
func NewReferenceService(r Registrar, logger logrus.FieldLogger) *ReferenceService {
	return &ReferenceService{Registrar: r, Logger: logger}
}

// PrepareReference copies the candidate image and mask into the iteration
// folder and derives the dilated mask and level set from the mask
func (s *ReferenceService) PrepareReference(ctx models.ConvergenceIterationContext) error {
	if err := os.MkdirAll(ctx.Folder(), 0755); err != nil {
		return errors.Wrapf(err, "creating %s", ctx.Folder())
	}
	if err := copyFile(ctx.Reference.ImagePath(), ctx.ReferenceImagePath()); err != nil {
		return err
	}
	if err := copyFile(ctx.Reference.MaskPath(), ctx.ReferenceMaskPath()); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"iteration": ctx.Iteration,
			"reference": ctx.Reference.Name,
		}).Debug("Reference copied")
	}
	return s.Registrar.PrepareReference(ReferenceFiles{
		Mask:         ctx.ReferenceMaskPath(),
		DilatedMask:  ctx.DilatedMaskPath(),
		Levelset:     ctx.LevelsetMaskPath(),
		DilateRadius: ctx.DilateRadius,
	})
}

// VectorField runs the forward chain of m onto the candidate and returns
// the path of its deformation field
func (s *ReferenceService) VectorField(ctx models.ConvergenceIterationContext, m models.CohortMember) (string, error) {
	p := Paths{
		Reference:     ctx.ReferenceImagePath(),
		ReferenceMask: ctx.DilatedMaskPath(),
		Levelset:      ctx.LevelsetMaskPath(),
		Moving:        m.ImagePath(),
		Folder:        ctx.RegisteredFolder(m),
		VectorField:   ctx.VectorFieldPath(m),
	}
	steps := []struct {
		name string
		run  func(Paths) error
	}{
		{"rigid", s.Registrar.Rigid},
		{"similarity", s.Registrar.Similarity},
		{"spline", s.Registrar.Spline},
		{"vector field", s.Registrar.VectorField},
	}
	for _, st := range steps {
		if err := st.run(p); err != nil {
			return "", errors.Wrapf(err, "%s %s", m.Name, st.name)
		}
	}
	return p.VectorField, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copying %s", src)
	}
	return errors.Wrapf(out.Close(), "closing %s", dst)
}
