package plugins

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kingrea/bam/internal/runner"
)

type recordedCommand struct {
	Ctx  context.Context
	Name string
	Args []string
	Opts runner.RunOptions
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []recordedCommand
	fail  map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, opts runner.RunOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCommand{Ctx: ctx, Name: name, Args: append([]string(nil), args...), Opts: opts})
	if len(args) > 0 {
		if err, ok := f.fail[args[len(args)-1]]; ok {
			return err
		}
	}
	return nil
}

// lines returns the last argument of every call, i.e. the shell line for sh -c.
func (f *fakeRunner) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		if len(call.Args) == 0 {
			out = append(out, call.Name)
			continue
		}
		out = append(out, call.Args[len(call.Args)-1])
	}
	return out
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
