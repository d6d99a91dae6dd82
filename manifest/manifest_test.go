package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/garnet/vm"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a garnet.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "test-app"
entry = "main.gas"

[engine]
hot_loop_threshold = 500
max_depth = 300

[log]
verbosity = 2
file = "garnet.log"

[store]
path = "/var/lib/garnet/units.db"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.EntryPath() != filepath.Join(m.Dir, "main.gas") {
		t.Errorf("entry path = %q, want main.gas under %s", m.EntryPath(), m.Dir)
	}
	if m.Engine.HotLoopThreshold != 500 {
		t.Errorf("hot loop threshold = %d, want 500", m.Engine.HotLoopThreshold)
	}
	if m.Engine.MaxDepth != 300 {
		t.Errorf("max depth = %d, want 300", m.Engine.MaxDepth)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "garnet.log" {
		t.Errorf("log = %+v, want verbosity 2 and file garnet.log", m.Log)
	}
	if m.StorePath() != "/var/lib/garnet/units.db" {
		t.Errorf("store path = %q, want the absolute path unchanged", m.StorePath())
	}

	opts := m.Options()
	if opts.MaxDepth != 300 || opts.HotLoopThreshold != 500 {
		t.Errorf("options = %+v, want depth 300 threshold 500", opts)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Engine.MaxDepth != vm.DefaultMaxDepth {
		t.Errorf("default max depth = %d, want %d", m.Engine.MaxDepth, vm.DefaultMaxDepth)
	}
	if m.Engine.HotLoopThreshold != 0 {
		t.Errorf("default hot loop threshold = %d, want 0", m.Engine.HotLoopThreshold)
	}
	if want := filepath.Join(m.Dir, ".garnet", "units.db"); m.StorePath() != want {
		t.Errorf("default store path = %q, want %q", m.StorePath(), want)
	}
	if m.EntryPath() != "" {
		t.Errorf("entry path = %q, want empty", m.EntryPath())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[project\nname = 1"},
		{"type", "[engine]\nmax_depth = \"deep\""},
		{"negative depth", "[engine]\nmax_depth = -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(dir); err == nil {
				t.Error("Load succeeded, want an error")
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("FindAndLoad error = %v, want ErrNoManifest", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no garnet.toml exists")
	}
}

func TestDefault(t *testing.T) {
	m := Default("/app")
	if m.StorePath() != "/app/.garnet/units.db" {
		t.Errorf("store path = %q, want /app/.garnet/units.db", m.StorePath())
	}
	if m.Options().MaxDepth != vm.DefaultMaxDepth {
		t.Errorf("max depth = %d, want %d", m.Options().MaxDepth, vm.DefaultMaxDepth)
	}
}
