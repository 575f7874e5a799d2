package morphology

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"kneemorph/internal/models"
	"kneemorph/pkg/matrixio"
	"kneemorph/pkg/volume"
	"kneemorph/pkg/workerpool"
)

// writeArcMask writes a C-shaped cartilage band 8 voxels (4 mm) thick on
// every slice and returns its subject
func writeArcMask(t *testing.T, dir, name string) models.Subject {
	t.Helper()
	input := filepath.Join(dir, "segmented")
	morph := filepath.Join(dir, "morphology")
	for _, d := range []string{input, morph} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	m := volume.NewMask([3]int{6, 80, 80}, [3]float64{1, 0.5, 0.5})
	for x := 0; x < 6; x++ {
		for row := 0; row < 80; row++ {
			for col := 0; col < 80; col++ {
				dr, dc := float64(row-40), float64(col-40)
				d := math.Hypot(dr, dc)
				if d >= 20 && d <= 28 && math.Abs(math.Atan2(dr, dc)) <= 2.2 {
					m.Set(x, col, row, 1)
				}
			}
		}
	}
	s := models.Subject{InputFolder: input, MaskName: name, MorphologyFolder: morph}
	if err := volume.WriteMask(s.MaskPath(), m); err != nil {
		t.Fatal(err)
	}
	return s
}

func separationJob(s models.Subject, npy bool) models.SeparationJob {
	return models.SeparationJob{Subject: s, MinRegionArea: 15, CylinderStride: 10, WriteNPY: npy}
}

func TestPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end run in short mode")
	}
	s := writeArcMask(t, t.TempDir(), "01_fc.mha")
	p := &Pipeline{Workers: 2, SliceCores: 2}

	sep, err := p.SeparateSurfaces([]models.SeparationJob{separationJob(s, false)})
	if err != nil {
		t.Fatalf("SeparateSurfaces failed: %v", err)
	}
	if sep[0].BonePts == 0 || sep[0].ArtiPts == 0 {
		t.Fatalf("Expected both surfaces, got %+v", sep[0])
	}
	for _, path := range []string{s.BoneCartPath(), s.ArtiCartPath(), s.BoneCartFlatPath(), s.ArtiCartFlatPath(), s.BonePhiPath(), s.ArtiPhiPath()} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s: %v", filepath.Base(path), err)
		}
	}
	flat, err := matrixio.ReadTxt(s.BoneCartFlatPath())
	if err != nil {
		t.Fatalf("Cannot read flattened surface: %v", err)
	}
	if len(flat) != 2 || len(flat[0]) != sep[0].BonePts || len(flat[1]) != sep[0].BonePts {
		t.Errorf("Expected axial and angular rows of %d values", sep[0].BonePts)
	}
	if _, err := os.Stat(matrixio.NPYPath(s.BoneCartPath())); !os.IsNotExist(err) {
		t.Error("No .npy companion expected without WriteNPY")
	}

	jobs := []models.ThicknessJob{
		{Subject: s, Algorithm: models.AtBoneSurface, RenderMap: true},
		{Subject: s, Algorithm: models.AtArticularSurface, UseKDTree: true},
	}
	// the two algorithms write different files and can run together
	res, err := p.ComputeThickness(jobs)
	if err != nil {
		t.Fatalf("ComputeThickness failed: %v", err)
	}
	if res[0].Points != sep[0].BonePts || res[1].Points != sep[0].ArtiPts {
		t.Errorf("Expected one thickness per measuring point, got %d and %d", res[0].Points, res[1].Points)
	}
	for _, r := range res {
		if r.Mean < 2.5 || r.Mean > 5.5 {
			t.Errorf("Algorithm %d: expected a mean thickness near 4 mm, got %g", r.Algorithm, r.Mean)
		}
		values, err := matrixio.ReadColumn(s.ThicknessPath(r.Algorithm))
		if err != nil {
			t.Fatalf("Cannot read thickness: %v", err)
		}
		flat, err := matrixio.ReadColumn(s.ThicknessFlatPath(r.Algorithm))
		if err != nil {
			t.Fatalf("Cannot read flattened thickness: %v", err)
		}
		if len(values) != r.Points || len(flat) != r.Points {
			t.Errorf("Algorithm %d: %d values and %d flattened for %d points", r.Algorithm, len(values), len(flat), r.Points)
		}
	}
	if _, err := os.Stat(s.ThicknessMapPath(models.AtBoneSurface)); err != nil {
		t.Errorf("Expected a thickness map: %v", err)
	}
	if _, err := os.Stat(s.ThicknessMapPath(models.AtArticularSurface)); !os.IsNotExist(err) {
		t.Error("No map expected when RenderMap is off")
	}
}

func TestBoneSurfaceFacesTheCentre(t *testing.T) {
	s := writeArcMask(t, t.TempDir(), "06_fc.mha")
	p := &Pipeline{Workers: 1, SliceCores: 1}
	if _, err := p.SeparateSubject(separationJob(s, false)); err != nil {
		t.Fatalf("SeparateSubject failed: %v", err)
	}

	// the arc spans 10 to 14 mm around (20, 20) in every slice
	meanRadius := func(path string) float64 {
		pts, err := matrixio.ReadPoints(path)
		if err != nil {
			t.Fatalf("Cannot read %s: %v", filepath.Base(path), err)
		}
		if len(pts) == 0 {
			t.Fatalf("%s is empty", filepath.Base(path))
		}
		sum := 0.0
		for _, pt := range pts {
			sum += math.Hypot(pt.X-20, pt.Y-20)
		}
		return sum / float64(len(pts))
	}
	if r := meanRadius(s.BoneCartPath()); r > 11.5 {
		t.Errorf("Bone surface should lie on the inner radius, mean distance %g mm", r)
	}
	if r := meanRadius(s.ArtiCartPath()); r < 12.5 {
		t.Errorf("Articular surface should lie on the outer radius, mean distance %g mm", r)
	}
}

func TestBruteForceAndKDTreeAgree(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end run in short mode")
	}
	s := writeArcMask(t, t.TempDir(), "02_fc.mha")
	p := &Pipeline{Workers: 1, SliceCores: 1}
	if _, err := p.SeparateSubject(separationJob(s, true)); err != nil {
		t.Fatalf("SeparateSubject failed: %v", err)
	}
	if _, err := os.Stat(matrixio.NPYPath(s.BonePhiPath())); err != nil {
		t.Fatalf("Expected .npy companions: %v", err)
	}

	brute, err := p.ThicknessSubject(models.ThicknessJob{Subject: s, Algorithm: models.AtBoneSurface})
	if err != nil {
		t.Fatal(err)
	}
	bruteValues, _ := matrixio.ReadColumn(s.ThicknessPath(models.AtBoneSurface))

	tree, err := p.ThicknessSubject(models.ThicknessJob{Subject: s, Algorithm: models.AtBoneSurface, UseKDTree: true})
	if err != nil {
		t.Fatal(err)
	}
	treeValues, _ := matrixio.ReadColumn(s.ThicknessPath(models.AtBoneSurface))

	if math.Abs(brute.Mean-tree.Mean) > 1e-9 {
		t.Errorf("Means differ: %g vs %g", brute.Mean, tree.Mean)
	}
	for i := range bruteValues {
		if bruteValues[i] != treeValues[i] {
			t.Fatalf("Thickness %d differs: %g vs %g", i, bruteValues[i], treeValues[i])
		}
	}
}

func TestThicknessNeedsSeparatedSurfaces(t *testing.T) {
	s := writeArcMask(t, t.TempDir(), "03_fc.mha")
	p := &Pipeline{Workers: 1}

	_, err := p.ComputeThickness([]models.ThicknessJob{{Subject: s, Algorithm: models.AtBoneSurface}})
	var batch *workerpool.BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("Expected a batch error, got %v", err)
	}
	var missing *MissingCompanionDataError
	if !errors.As(batch.Failures[0].Err, &missing) {
		t.Fatalf("Expected missing companion data, got %v", batch.Failures[0].Err)
	}
	if missing.Path != s.BoneCartPath() {
		t.Errorf("Expected %s to be missing, got %s", s.BoneCartPath(), missing.Path)
	}
	if batch.Failures[0].Stage != StageThickness {
		t.Errorf("Expected stage %q, got %q", StageThickness, batch.Failures[0].Stage)
	}
}

func TestComputeVolume(t *testing.T) {
	dir := t.TempDir()
	s := models.Subject{InputFolder: dir, MaskName: "04_fc.mha", MorphologyFolder: dir}
	m := volume.NewMask([3]int{4, 4, 4}, [3]float64{0.5, 0.5, 0.7})
	for i := 0; i < 10; i++ {
		m.Data[i] = 1
	}
	if err := volume.WriteMask(s.MaskPath(), m); err != nil {
		t.Fatal(err)
	}

	missing := models.Subject{InputFolder: dir, MaskName: "05_fc.mha", MorphologyFolder: dir}
	res, err := (&Pipeline{Workers: 2}).ComputeVolume([]models.VolumeJob{{Subject: s}, {Subject: missing}})

	var batch *workerpool.BatchError
	if !errors.As(err, &batch) || len(batch.Failures) != 1 || batch.Failures[0].Subject != "05_fc.mha" {
		t.Fatalf("Expected only the missing mask to fail, got %v", err)
	}
	if res[0].Voxels != 10 || math.Abs(res[0].VolumeMM3-1.75) > 1e-9 {
		t.Errorf("Expected 10 voxels and 1.75 mm3, got %+v", res[0])
	}
	data, err := os.ReadFile(s.VolumePath())
	if err != nil {
		t.Fatalf("Cannot read volume file: %v", err)
	}
	if string(data) != "1.75 \n" {
		t.Errorf("Expected \"1.75 \\n\", got %q", data)
	}
}

func TestSeparationRejectsInvalidJob(t *testing.T) {
	job := models.SeparationJob{Subject: models.Subject{MaskName: "x.mha", MorphologyFolder: t.TempDir()}}
	if _, err := (&Pipeline{}).SeparateSubject(job); err == nil {
		t.Error("Expected an error for a zero cylinder stride")
	}
}
