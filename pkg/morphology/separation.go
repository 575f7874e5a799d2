package morphology

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kneemorph/internal/models"
	"kneemorph/pkg/flatten"
	"kneemorph/pkg/geometry"
	"kneemorph/pkg/matrixio"
	"kneemorph/pkg/surface"
	"kneemorph/pkg/volume"
	"kneemorph/pkg/workerpool"
)

// SeparationResult describes the surfaces written for one subject
type SeparationResult struct {
	Subject   models.Subject
	BonePts   int
	ArtiPts   int
	BoneAxis  geometry.Cylinder
	ArtiAxis  geometry.Cylinder
	EmptySide []geometry.Side
}

// SeparateSurfaces separates and flattens every subject. Results are in
// job order; subjects that failed have a zero result and are listed in the
// returned *workerpool.BatchError.
func (p *Pipeline) SeparateSurfaces(jobs []models.SeparationJob) ([]SeparationResult, error) {
	name := func(j models.SeparationJob) string { return j.Subject.MaskName }
	return workerpool.Run(p.pool(), StageSeparation, jobs, name, p.separate)
}

// SeparateSubject runs the separation stage of one subject
func (p *Pipeline) SeparateSubject(job models.SeparationJob) (SeparationResult, error) {
	return p.separate(job)
}

func (p *Pipeline) separate(job models.SeparationJob) (SeparationResult, error) {
	res := SeparationResult{Subject: job.Subject}
	if err := job.Validate(); err != nil {
		return res, err
	}
	s := job.Subject
	log := p.logger().WithFields(logrus.Fields{"subject": s.MaskName, "stage": StageSeparation})

	mask, err := volume.ReadMask(s.MaskPath())
	if err != nil {
		return res, err
	}

	sep := surface.Separator{MinRegionArea: job.MinRegionArea, NumCores: p.SliceCores, Logger: log}
	crossing, direct, err := sep.Separate(mask)
	if err != nil {
		return res, err
	}
	// Segments from the fitted centre reach the outer surface only after
	// crossing the inner one, so the crossing points are articular.
	bone := geometry.PointCloud{Side: geometry.BoneSide, Points: direct.Points}
	arti := geometry.PointCloud{Side: geometry.ArticularSide, Points: crossing.Points}
	res.BonePts, res.ArtiPts = bone.Len(), arti.Len()

	if err := matrixio.WritePoints(s.BoneCartPath(), bone.Points, job.WriteNPY); err != nil {
		return res, err
	}
	if err := matrixio.WritePoints(s.ArtiCartPath(), arti.Points, job.WriteNPY); err != nil {
		return res, err
	}

	flattener := flatten.Flattener{Stride: job.CylinderStride}
	sides := []struct {
		cloud geometry.PointCloud
		flat  string
		phi   string
		axis  *geometry.Cylinder
	}{
		{bone, s.BoneCartFlatPath(), s.BonePhiPath(), &res.BoneAxis},
		{arti, s.ArtiCartFlatPath(), s.ArtiPhiPath(), &res.ArtiAxis},
	}
	for _, side := range sides {
		surf, err := flattener.Flatten(side.cloud)
		if errors.Is(err, surface.ErrEmptyRegion) {
			log.WithField("side", side.cloud.Side.String()).Warn("No points to flatten")
			res.EmptySide = append(res.EmptySide, side.cloud.Side)
			surf = &flatten.Surface{}
		} else if err != nil {
			return res, pkgerrors.Wrapf(err, "subject %s", s.MaskName)
		}
		*side.axis = surf.Cylinder

		if err := matrixio.Save(side.flat, flatRows(surf), job.WriteNPY); err != nil {
			return res, err
		}
		if err := matrixio.WriteColumn(side.phi, surf.Phi, job.WriteNPY); err != nil {
			return res, err
		}
	}

	log.WithFields(logrus.Fields{
		"bone":      res.BonePts,
		"articular": res.ArtiPts,
		"radius":    res.BoneAxis.Radius,
	}).Info("Surfaces separated and flattened")
	return res, nil
}

// flatRows stacks a flattened surface as two rows: axial, then angular
func flatRows(s *flatten.Surface) [][]float64 {
	if s.Len() == 0 {
		return nil
	}
	return [][]float64{s.Axial, s.Angular}
}
