// Package config loads the project configuration from matgraph.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chazu/matgraph/pkg/kernel/sdfx"
	"github.com/chazu/matgraph/pkg/logging"
	"github.com/chazu/matgraph/pkg/preview"
	"github.com/chazu/matgraph/pkg/shadergen"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "matgraph.yaml"

// Preview selects the object materials are shown on.
type Preview struct {
	Shape string `yaml:"shape"`
	Cells int    `yaml:"cells"`
}

// Config is the project configuration.
type Config struct {
	ProjectRoot    string  `yaml:"project_root"`
	ShaderTemplate string  `yaml:"shader_template"`
	Placeholder    string  `yaml:"placeholder"`
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"`
	Preview        Preview `yaml:"preview"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ProjectRoot:    "project",
		ShaderTemplate: shadergen.DefaultTemplate,
		Placeholder:    shadergen.DefaultPlaceholder,
		LogLevel:       "info",
		LogFormat:      string(logging.FormatText),
		Preview: Preview{
			Shape: string(preview.ShapeSphere),
			Cells: sdfx.DefaultMeshCells,
		},
	}
}

// Load reads path over the defaults. A missing file yields Default().
// Relative project and template paths are resolved against the directory
// holding the file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if cfg.ProjectRoot != "" && !filepath.IsAbs(cfg.ProjectRoot) {
		cfg.ProjectRoot = filepath.Join(dir, cfg.ProjectRoot)
	}
	if cfg.ShaderTemplate != "" && !filepath.IsAbs(cfg.ShaderTemplate) {
		cfg.ShaderTemplate = filepath.Join(dir, cfg.ShaderTemplate)
	}
	return cfg, cfg.Validate()
}

// Save writes c to path as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.ProjectRoot == "" {
		return errors.New("config: project_root is empty")
	}
	if c.Placeholder == "" {
		return errors.New("config: placeholder is empty")
	}
	if c.ShaderTemplate == "" {
		return errors.New("config: shader_template is empty")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := preview.ParseShape(c.Preview.Shape); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Preview.Cells < 0 {
		return fmt.Errorf("config: preview cells %d is negative", c.Preview.Cells)
	}
	return nil
}

// Logging returns the logger options described by c.
func (c Config) Logging() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat}
}
