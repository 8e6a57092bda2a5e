// Package config handles son.toml project configuration and runtime
// environment-variable settings — the two layers of §4.10, matching their
// two different lifetimes.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a son.toml project configuration: static, checked-in
// configuration describing a SON project's source directory and image
// output path.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	Image   ImageConfig `toml:"image"`

	// Dir is the directory containing son.toml (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where .son.json source fragments live.
type Source struct {
	Dir   string `toml:"dir"`
	Entry string `toml:"entry"`
}

// ImageConfig configures where a built image snapshot is written.
type ImageConfig struct {
	Output string `toml:"output"`
}

// Load parses a son.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "son.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Source.Dir == "" {
		m.Source.Dir = "src"
	}
	if m.Image.Output == "" {
		m.Image.Output = "image.db"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a son.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "son.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPath returns the absolute path of the configured source
// directory.
func (m *Manifest) SourceDirPath() string {
	return filepath.Join(m.Dir, m.Source.Dir)
}

// ImageOutputPath returns the absolute path the built image snapshot is
// written to.
func (m *Manifest) ImageOutputPath() string {
	return filepath.Join(m.Dir, m.Image.Output)
}
