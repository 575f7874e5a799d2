package models

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLaterality(t *testing.T) {
	tests := []struct {
		in      string
		want    Laterality
		wantErr bool
	}{
		{"left", Left, false},
		{"Left", Left, false},
		{"RIGHT", Right, false},
		{" right ", Right, false},
		{"lefft", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLaterality(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLaterality(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLaterality(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubjectFileNames(t *testing.T) {
	s := Subject{InputFolder: "/in", MaskName: "01_DESS_01_prep_fc.mha", MorphologyFolder: "/morph"}

	if got := s.BoneCartPath(); got != "/morph/01_DESS_01_prep_fc_bone_cart.txt" {
		t.Errorf("Unexpected bone cartilage path %s", got)
	}
	if got := s.ThicknessFlatPath(AtBoneSurface); got != "/morph/01_DESS_01_prep_fc_thickness_flat_1.txt" {
		t.Errorf("Unexpected flat thickness path %s", got)
	}
	if got := s.VolumePath(); got != "/morph/01_DESS_01_prep_fc_volume.txt" {
		t.Errorf("Unexpected volume path %s", got)
	}
}

func TestCohortMemberNames(t *testing.T) {
	m := CohortMember{Folder: "/data", Name: "02_DESS_01_prep.mha"}

	if m.Mask() != "02_DESS_01_f.mha" {
		t.Errorf("Expected derived mask 02_DESS_01_f.mha, got %s", m.Mask())
	}
	if m.VectorFieldName() != "02_DESS_01_prep_VF.mha" {
		t.Errorf("Unexpected vector field name %s", m.VectorFieldName())
	}

	odd := CohortMember{Folder: "/data", Name: "image.nrrd"}
	if err := odd.Validate(); err == nil {
		t.Error("Expected an error when no mask name can be derived")
	}
}

func TestIterationContextPaths(t *testing.T) {
	c := ConvergenceIterationContext{
		Iteration:    2,
		Reference:    CohortMember{Folder: "/data", Name: "03_prep.mha"},
		Workspace:    "/ws",
		DilateRadius: 15,
	}

	if c.Folder() != "/ws/2_03_prep" {
		t.Errorf("Unexpected folder %s", c.Folder())
	}
	if c.DilatedMaskPath() != "/ws/2_03_prep/reference_f_15.mha" {
		t.Errorf("Unexpected dilated mask path %s", c.DilatedMaskPath())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Context should be valid: %v", err)
	}

	c.Iteration = 0
	if err := c.Validate(); err == nil {
		t.Error("Expected an error for iteration 0")
	}
}

func TestLoadMorphologyList(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "original")
	if err := os.MkdirAll(input, 0755); err != nil {
		t.Fatalf("Failed to create input folder: %v", err)
	}
	for _, name := range []string{"a_fc.mha", "b_fc.mha"} {
		if err := os.WriteFile(filepath.Join(input, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create mask: %v", err)
		}
	}

	list := filepath.Join(root, "list.txt")
	content := input + "\na_fc.mha Right\n\nb_fc.mha\n"
	if err := os.WriteFile(list, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}

	subjects, err := LoadMorphologyList(list)
	if err != nil {
		t.Fatalf("Failed to load list: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("Expected 2 subjects, got %d", len(subjects))
	}
	if subjects[0].Laterality != Right {
		t.Errorf("Expected right laterality, got %q", subjects[0].Laterality)
	}
	if subjects[1].MorphologyFolder != filepath.Join(root, "morphology") {
		t.Errorf("Unexpected morphology folder %s", subjects[1].MorphologyFolder)
	}
	if _, err := os.Stat(filepath.Join(root, "morphology")); err != nil {
		t.Errorf("Morphology folder was not created: %v", err)
	}
}

func TestLoadReferenceList(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"r_prep.mha", "m1_prep.mha", "m2_prep.mha"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create image: %v", err)
		}
	}
	list := filepath.Join(root, "ref.txt")
	content := root + "\nr r_prep.mha\nm m1_prep.mha\nm m2_prep.mha\n"
	if err := os.WriteFile(list, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}

	members, seed, err := LoadReferenceList(list)
	if err != nil {
		t.Fatalf("Failed to load list: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("Expected 2 members, got %d", len(members))
	}
	if seed == nil || seed.Name != "r_prep.mha" {
		t.Errorf("Expected seed r_prep.mha, got %+v", seed)
	}

	bad := filepath.Join(root, "bad.txt")
	if err := os.WriteFile(bad, []byte(root+"\nx m1_prep.mha\n"), 0644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}
	if _, _, err := LoadReferenceList(bad); err == nil {
		t.Error("Expected an error for an unknown image type")
	}
}
