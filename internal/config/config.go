// Package config loads the two configuration surfaces: the optional scan
// config file used by the CLI, and the environment-driven settings of the
// webhook service.
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the scan config filename the CLI looks for when no
// --config flag is given.
const DefaultConfigFile = "ksi.yaml"

// ScanConfig is the optional scan configuration file. All fields have
// working defaults; the file exists to pin paths and output location in CI.
type ScanConfig struct {
	Version int `yaml:"version" json:"version"`

	// Paths restricts scanning to these root-relative paths. Empty means
	// the whole tree.
	Paths []string `yaml:"paths" json:"paths"`

	// OutputDir is where evidence packs are written.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// TerraformBinary overrides the terraform executable name.
	TerraformBinary string `yaml:"terraform_binary" json:"terraform_binary"`
}

// DefaultScanConfig returns the configuration used when no file is given.
func DefaultScanConfig() *ScanConfig {
	return &ScanConfig{
		Version:   1,
		OutputDir: ".",
	}
}

// LoadScanConfig reads, parses, and validates a scan config file.
func LoadScanConfig(path string) (*ScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ScanConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, errors.New("unsupported scan config version")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	return &cfg, nil
}
