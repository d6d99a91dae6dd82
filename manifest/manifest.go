// Package manifest handles garnet.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/garnet/vm"
)

// FileName is the manifest file looked for in a project directory.
const FileName = "garnet.toml"

// ErrNoManifest is returned by FindAndLoad when no garnet.toml exists in
// the start directory or any parent.
var ErrNoManifest = errors.New("no " + FileName + " found")

// Manifest represents a garnet.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Engine  Engine      `toml:"engine"`
	Log     LogConfig   `toml:"log"`
	Store   StoreConfig `toml:"store"`

	// Dir is the directory containing the garnet.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// Engine tunes the interpreter.
type Engine struct {
	// HotLoopThreshold enables the loop profiler; 0 disables it.
	HotLoopThreshold uint64 `toml:"hot_loop_threshold"`
	MaxDepth         int    `toml:"max_depth"`
}

// LogConfig configures commonlog output.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// StoreConfig locates the unit database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no manifest exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a garnet.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
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
	if m.Engine.MaxDepth < 0 {
		return nil, fmt.Errorf("%s: engine.max_depth must not be negative", path)
	}

	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Engine.MaxDepth == 0 {
		m.Engine.MaxDepth = vm.DefaultMaxDepth
	}
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".garnet", "units.db")
	}
}

// FindAndLoad walks up from startDir to find a garnet.toml file,
// then loads and returns the manifest.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, ErrNoManifest
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the unit database.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// EntryPath returns the absolute path of the project's entry unit, or ""
// when none is configured.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

// Options converts the engine section into space options.
func (m *Manifest) Options() vm.Options {
	return vm.Options{
		MaxDepth:         m.Engine.MaxDepth,
		HotLoopThreshold: m.Engine.HotLoopThreshold,
	}
}
