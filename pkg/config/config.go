// Package config provides configuration loading and management for kneemorph.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters for the morphology pipeline
	Processing struct {
		// NumCores specifies how many subjects are processed concurrently
		NumCores int `yaml:"numCores"`

		// MinRegionArea is the smallest slice region (in voxels) kept during
		// surface separation; smaller regions are segmentation noise
		MinRegionArea int `yaml:"minRegionArea"`

		// CylinderStride keeps every n-th point when fitting the cylinder
		CylinderStride int `yaml:"cylinderStride"`

		// ThicknessAlgorithm selects the measuring surface:
		// 1 = bone-side surface, 2 = articular surface
		ThicknessAlgorithm int `yaml:"thicknessAlgorithm"`

		// NeighborIndex is "brute" or "kdtree"
		NeighborIndex string `yaml:"neighborIndex"`
	} `yaml:"processing"`

	// Reference search parameters
	Reference struct {
		// MaxIterations caps the convergence loop
		MaxIterations int `yaml:"maxIterations"`

		// DilateRadius is the radius (voxels) used to dilate the reference mask
		DilateRadius int `yaml:"dilateRadius"`

		// Workspace is the folder where each iteration's reference is materialized
		Workspace string `yaml:"workspace"`

		// ElastixPath and TransformixPath point to the registration executables
		ElastixPath     string `yaml:"elastixPath"`
		TransformixPath string `yaml:"transformixPath"`

		// Parameter files for the three registration stages
		ParamRigid      string `yaml:"paramRigid"`
		ParamSimilarity string `yaml:"paramSimilarity"`
		ParamSpline     string `yaml:"paramSpline"`

		// Parameter files used to invert the three stages
		ParamInverseRigid      string `yaml:"paramInverseRigid"`
		ParamInverseSimilarity string `yaml:"paramInverseSimilarity"`
		ParamInverseSpline     string `yaml:"paramInverseSpline"`
	} `yaml:"reference"`

	// Output parameters
	Output struct {
		// WriteNPY additionally writes lossless .npy companions
		WriteNPY bool `yaml:"writeNPY"`

		// ThicknessMaps renders a PNG of every flattened thickness field
		ThicknessMaps bool `yaml:"thicknessMaps"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.MinRegionArea = 15
	cfg.Processing.CylinderStride = 10
	cfg.Processing.ThicknessAlgorithm = 1
	cfg.Processing.NeighborIndex = "brute"

	cfg.Reference.MaxIterations = 10
	cfg.Reference.DilateRadius = 15
	cfg.Reference.Workspace = "reference"
	cfg.Reference.ElastixPath = "elastix"
	cfg.Reference.TransformixPath = "transformix"
	cfg.Reference.ParamRigid = "parameterFiles/rigid.txt"
	cfg.Reference.ParamSimilarity = "parameterFiles/similarity.txt"
	cfg.Reference.ParamSpline = "parameterFiles/spline.txt"
	cfg.Reference.ParamInverseRigid = "parameterFiles/rigid_inverse.txt"
	cfg.Reference.ParamInverseSimilarity = "parameterFiles/similarity_inverse.txt"
	cfg.Reference.ParamInverseSpline = "parameterFiles/spline_inverse.txt"

	cfg.Output.WriteNPY = false
	cfg.Output.ThicknessMaps = false
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return errors.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if c.Processing.MinRegionArea < 1 {
		return errors.Errorf("processing.minRegionArea must be at least 1, got %d", c.Processing.MinRegionArea)
	}
	if c.Processing.CylinderStride < 1 {
		return errors.Errorf("processing.cylinderStride must be at least 1, got %d", c.Processing.CylinderStride)
	}
	if c.Processing.ThicknessAlgorithm != 1 && c.Processing.ThicknessAlgorithm != 2 {
		return errors.Errorf("processing.thicknessAlgorithm must be 1 or 2, got %d", c.Processing.ThicknessAlgorithm)
	}
	if c.Processing.NeighborIndex != "brute" && c.Processing.NeighborIndex != "kdtree" {
		return errors.Errorf("processing.neighborIndex must be \"brute\" or \"kdtree\", got %q", c.Processing.NeighborIndex)
	}
	if c.Reference.MaxIterations < 1 {
		return errors.Errorf("reference.maxIterations must be at least 1, got %d", c.Reference.MaxIterations)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
