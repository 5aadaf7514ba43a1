package project

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileNames are tried in order when no configuration path is given.
var DefaultFileNames = []string{"bam.go", "bam.yaml", "bam.yml", "bam.hcl"}

// Source is either an in-memory configuration or a path to a configuration file.
// The zero value selects the conventional file in the working directory.
type Source struct {
	path  string
	hooks *Hooks
}

// FromHooks wraps an already-built configuration.
func FromHooks(h *Hooks) Source {
	if h == nil {
		h = &Hooks{}
	}
	return Source{hooks: h}
}

// FromPath points at a configuration file. An empty path selects the default.
func FromPath(path string) Source {
	return Source{path: strings.TrimSpace(path)}
}

// Path returns the configured file path, if any.
func (s Source) Path() string { return s.path }

// Hooks returns the in-memory configuration, if any.
func (s Source) Hooks() *Hooks { return s.hooks }

// InMemory reports whether the source needs no filesystem access.
func (s Source) InMemory() bool { return s.hooks != nil }

// Loader turns a configuration file into Hooks. Implementations decide the
// file format (Go script, YAML, ...).
type Loader interface {
	Load(ctx context.Context, path string) (*Hooks, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) (*Hooks, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, path string) (*Hooks, error) {
	return f(ctx, path)
}

// Logger receives progress lines from the lifecycle engine.
type Logger interface {
	Printf(format string, args ...any)
}

// Deps bundles the collaborators a Node needs. Zero fields fall back to the
// operating system where that makes sense.
type Deps struct {
	Stat   func(path string) (fs.FileInfo, error)
	Loader Loader
	Log    Logger
	// Version is the running bam version used to reject configurations that
	// declare a newer ScriptVersion. Empty disables the check.
	Version string
}

func (d Deps) withDefaults() Deps {
	if d.Stat == nil {
		d.Stat = os.Stat
	}
	return d
}

func (d Deps) logf(format string, args ...any) {
	if d.Log != nil {
		d.Log.Printf(format, args...)
	}
}

// DefaultPath returns the first conventional configuration file present in dir,
// or dir/bam.go when none exists.
func DefaultPath(dir string, stat func(string) (fs.FileInfo, error)) string {
	if stat == nil {
		stat = os.Stat
	}
	for _, name := range DefaultFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return filepath.Join(dir, DefaultFileNames[0])
}
