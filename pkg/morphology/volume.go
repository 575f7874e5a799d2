package morphology

import (
	"github.com/sirupsen/logrus"

	"kneemorph/internal/models"
	"kneemorph/pkg/matrixio"
	"kneemorph/pkg/volume"
	"kneemorph/pkg/workerpool"
)

// VolumeResult is the cartilage volume of one subject
type VolumeResult struct {
	Subject   models.Subject
	Voxels    int
	VolumeMM3 float64
}

// ComputeVolume counts the labelled voxels of every mask and writes the
// volume in mm^3 with two decimals
func (p *Pipeline) ComputeVolume(jobs []models.VolumeJob) ([]VolumeResult, error) {
	name := func(j models.VolumeJob) string { return j.Subject.MaskName }
	return workerpool.Run(p.pool(), StageVolume, jobs, name, p.measureVolume)
}

func (p *Pipeline) measureVolume(job models.VolumeJob) (VolumeResult, error) {
	res := VolumeResult{Subject: job.Subject}
	if err := job.Validate(); err != nil {
		return res, err
	}
	mask, err := volume.ReadMask(job.Subject.MaskPath())
	if err != nil {
		return res, err
	}
	res.Voxels = mask.CountNonZero()
	res.VolumeMM3 = mask.VolumeMM3()
	if err := matrixio.WriteColumn(job.Subject.VolumePath(), []float64{res.VolumeMM3}, false); err != nil {
		return res, err
	}

	p.logger().WithFields(logrus.Fields{
		"subject": job.Subject.MaskName,
		"stage":   StageVolume,
		"mm3":     res.VolumeMM3,
	}).Info("Volume computed")
	return res, nil
}
