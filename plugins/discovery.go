package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/runner"
)

// Loader resolves configuration files by extension: .go scripts are evaluated
// with yaegi, .yaml/.yml and .hcl files are declarative.
type Loader struct {
	runner runner.Runner
}

// NewLoader returns a Loader whose hooks run commands through r.
func NewLoader(r runner.Runner) *Loader {
	if r == nil {
		r = runner.NewExec()
	}
	return &Loader{runner: r}
}

// Load implements project.Loader.
func (l *Loader) Load(ctx context.Context, path string) (*project.Hooks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case isGoFile(path):
		return LoadGoConfig(path, l.runner)
	case isYAMLFile(path):
		return LoadYAMLConfig(path, l.runner)
	case isHCLFile(path):
		return LoadHCLConfig(path, l.runner)
	default:
		return nil, fmt.Errorf("plugin: %s: unsupported configuration format (want .go, .yaml, .yml or .hcl)", path)
	}
}

func isGoFile(name string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(name)), ".go")
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

func isHCLFile(name string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(name)), ".hcl")
}
