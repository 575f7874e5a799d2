package morphology

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kneemorph/internal/models"
	"kneemorph/pkg/flatten"
	"kneemorph/pkg/geometry"
	"kneemorph/pkg/matrixio"
	"kneemorph/pkg/thickness"
	"kneemorph/pkg/visualization"
	"kneemorph/pkg/workerpool"
)

// ThicknessResult summarizes the thickness of one subject
type ThicknessResult struct {
	Subject   models.Subject
	Algorithm models.ThicknessAlgorithm
	Points    int
	thickness.Summary
}

// ComputeThickness measures every subject from the surfaces written by
// SeparateSurfaces
func (p *Pipeline) ComputeThickness(jobs []models.ThicknessJob) ([]ThicknessResult, error) {
	name := func(j models.ThicknessJob) string { return j.Subject.MaskName }
	return workerpool.Run(p.pool(), StageThickness, jobs, name, p.measureThickness)
}

// ThicknessSubject runs the thickness stage of one subject
func (p *Pipeline) ThicknessSubject(job models.ThicknessJob) (ThicknessResult, error) {
	return p.measureThickness(job)
}

func (p *Pipeline) measureThickness(job models.ThicknessJob) (ThicknessResult, error) {
	res := ThicknessResult{Subject: job.Subject, Algorithm: job.Algorithm}
	if err := job.Validate(); err != nil {
		return res, err
	}
	s := job.Subject
	log := p.logger().WithFields(logrus.Fields{
		"subject":   s.MaskName,
		"stage":     StageThickness,
		"algorithm": int(job.Algorithm),
	})

	bonePts, err := readPoints(s.MaskName, s.BoneCartPath())
	if err != nil {
		return res, err
	}
	artiPts, err := readPoints(s.MaskName, s.ArtiCartPath())
	if err != nil {
		return res, err
	}
	bone := geometry.PointCloud{Side: geometry.BoneSide, Points: bonePts}
	arti := geometry.PointCloud{Side: geometry.ArticularSide, Points: artiPts}

	// the measuring surface and its flattening
	from, to := bone, arti
	phiPath, flatPath := s.BonePhiPath(), s.BoneCartFlatPath()
	if job.Algorithm == models.AtArticularSurface {
		from, to = arti, bone
		phiPath, flatPath = s.ArtiPhiPath(), s.ArtiCartFlatPath()
	}

	measure := thickness.Func(thickness.NearestNeighbor)
	if job.UseKDTree {
		measure = thickness.KDTree
	}
	values, err := measure(from, to)
	if err != nil {
		return res, err
	}
	if err := matrixio.WriteColumn(s.ThicknessPath(job.Algorithm), values, false); err != nil {
		return res, err
	}

	phi, err := readColumn(s.MaskName, phiPath)
	if err != nil {
		return res, err
	}
	flat, err := flatten.FlattenThickness(values, phi)
	if err != nil {
		return res, err
	}
	if err := matrixio.WriteColumn(s.ThicknessFlatPath(job.Algorithm), flat, false); err != nil {
		return res, err
	}

	if job.RenderMap && len(flat) > 0 {
		if err := renderMap(s.MaskName, flatPath, flat, s.ThicknessMapPath(job.Algorithm)); err != nil {
			return res, err
		}
	}

	res.Points = len(values)
	res.Summary = thickness.Summarize(values)
	log.WithFields(logrus.Fields{
		"points": res.Points,
		"mean":   res.Mean,
		"std":    res.Std,
	}).Info("Thickness computed")
	return res, nil
}

func renderMap(subject, flatPath string, flat []float64, out string) error {
	rows, err := readRows(subject, flatPath)
	if err != nil {
		return err
	}
	if len(rows) != 2 {
		return errors.Errorf("%s has %d rows, expected axial and angular", flatPath, len(rows))
	}
	img, err := visualization.RenderThicknessMap(rows[0], rows[1], flat, visualization.DefaultMapOptions())
	if err != nil {
		return err
	}
	return visualization.SavePNG(img, out)
}
