// Package config provides configuration loading and management for mrimesh.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"path/filepath"
	"runtime"

	"github.com/drone/envsubst"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid value")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines extract the surface in parallel
		Workers int `yaml:"workers"`

		// SliceGap represents the physical distance between consecutive MRI slices in mm
		SliceGap float64 `yaml:"sliceGap"`

		// IsoLevel is the normalized intensity separating tissue from background
		IsoLevel float64 `yaml:"isoLevel"`

		// Smoothing is the in-plane Gaussian sigma in voxels applied to slices; 0 disables it
		Smoothing float64 `yaml:"smoothing"`

		// Isotropic resamples the slice stack by kriging so voxels become cubes
		Isotropic bool `yaml:"isotropic"`

		// CacheSize is the number of extracted surfaces kept for reuse
		CacheSize int `yaml:"cacheSize"`
	} `yaml:"processing"`

	// Mesh construction parameters
	Mesh struct {
		// Tolerance is the distance below which vertices are welded
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"mesh"`

	// Output parameters
	Output struct {
		// Format is the default mesh file extension: stl, gltf or glb
		Format string `yaml:"format"`

		// ASCII writes STL files as text
		ASCII bool `yaml:"ascii"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.SliceGap = 1.0
	cfg.Processing.IsoLevel = 0.5
	cfg.Processing.Smoothing = 0
	cfg.Processing.Isotropic = false
	cfg.Processing.CacheSize = 8

	cfg.Mesh.Tolerance = 1e-6

	cfg.Output.Format = "stl"
	cfg.Output.ASCII = false
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Processing.Workers < 1:
		return errors.Wrapf(ErrInvalid, "processing.workers %d", c.Processing.Workers)
	case c.Processing.SliceGap <= 0:
		return errors.Wrapf(ErrInvalid, "processing.sliceGap %g", c.Processing.SliceGap)
	case c.Processing.Smoothing < 0:
		return errors.Wrapf(ErrInvalid, "processing.smoothing %g", c.Processing.Smoothing)
	case c.Processing.CacheSize < 1:
		return errors.Wrapf(ErrInvalid, "processing.cacheSize %d", c.Processing.CacheSize)
	case c.Mesh.Tolerance < 0:
		return errors.Wrapf(ErrInvalid, "mesh.tolerance %g", c.Mesh.Tolerance)
	}
	switch c.Output.Format {
	case "stl", "gltf", "glb":
	default:
		return errors.Wrapf(ErrInvalid, "output.format %q", c.Output.Format)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file on the local filesystem.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigFS(osfs.New(), configPath)
}

// LoadConfigFS loads configuration from a YAML file on fs. ${VAR} references are
// replaced from the environment before parsing.
func LoadConfigFS(fs vfs.FileSystem, configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := vfs.ReadFile(fs, configPath)
	if errors.Is(err, vfs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	expanded, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "error expanding config file")
	}

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	return SaveConfigFS(osfs.New(), cfg, configPath)
}

// SaveConfigFS saves the configuration to a YAML file on fs, creating the directory.
func SaveConfigFS(fs vfs.FileSystem, cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := vfs.WriteFile(fs, configPath, data, 0o644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}
	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
