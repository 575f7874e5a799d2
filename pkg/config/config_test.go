package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.MinRegionArea != 15 {
		t.Errorf("Expected minimum region area 15, got %d", cfg.Processing.MinRegionArea)
	}
	if cfg.Processing.CylinderStride != 10 {
		t.Errorf("Expected cylinder stride 10, got %d", cfg.Processing.CylinderStride)
	}
	if cfg.Reference.MaxIterations != 10 {
		t.Errorf("Expected 10 reference iterations, got %d", cfg.Reference.MaxIterations)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default configuration should be valid: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Missing config file should fall back to defaults: %v", err)
	}
	if cfg.Processing.ThicknessAlgorithm != 1 {
		t.Errorf("Expected default thickness algorithm 1, got %d", cfg.Processing.ThicknessAlgorithm)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kneemorph.yaml")

	cfg := DefaultConfig()
	cfg.Processing.NumCores = 3
	cfg.Processing.NeighborIndex = "kdtree"
	cfg.Reference.Workspace = "/tmp/ref"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Processing.NumCores != 3 {
		t.Errorf("Expected 3 cores, got %d", loaded.Processing.NumCores)
	}
	if loaded.Processing.NeighborIndex != "kdtree" {
		t.Errorf("Expected kdtree index, got %q", loaded.Processing.NeighborIndex)
	}
	if loaded.Reference.Workspace != "/tmp/ref" {
		t.Errorf("Expected workspace /tmp/ref, got %q", loaded.Reference.Workspace)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "processing:\n  numCores: 2\n  minRegionArea: 15\n  cylinderStride: 10\n  thicknessAlgorithm: 3\n  neighborIndex: brute\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected an error for thickness algorithm 3")
	}
}
