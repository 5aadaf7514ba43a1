package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/kingrea/bam/internal/config"
	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/runner"
	"github.com/kingrea/bam/plugins"
	"github.com/stretchr/testify/require"
)

const testExecutable = "bam-test"

type recordedCall struct {
	Name string
	Args []string
	Dir  string
}

// fakeRunner simulates git clone by materialising the files registered for a
// URL and records every other command.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []recordedCall
	repos     map[string]map[string]string
	failClone map[string]int
	failLines map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		repos:     map[string]map[string]string{},
		failClone: map[string]int{},
		failLines: map[string]error{},
	}
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, opts runner.RunOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{Name: name, Args: append([]string(nil), args...), Dir: opts.Dir})
	if name == "sh" && len(args) == 2 {
		return f.failLines[args[1]]
	}
	if name != "git" || len(args) != 4 || args[0] != "clone" {
		return nil
	}
	url, dest := args[2], args[3]
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if remaining, ok := f.failClone[url]; ok && remaining != 0 {
		if remaining > 0 {
			f.failClone[url] = remaining - 1
		}
		return errors.New("fatal: could not read from remote repository")
	}
	for name, content := range f.repos[url] {
		if err := os.WriteFile(filepath.Join(dest, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// commands renders calls as "<line>" for shell hooks and "<name> <args>" otherwise.
func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		if call.Name == "sh" && len(call.Args) == 2 {
			out = append(out, call.Args[1])
			continue
		}
		out = append(out, strings.TrimSpace(call.Name+" "+strings.Join(call.Args, " ")))
	}
	return out
}

func (f *fakeRunner) callsTo(name string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, call := range f.calls {
		if call.Name == name {
			out = append(out, call)
		}
	}
	return out
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Printf(string, ...any) {}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, format)
}

func newTestBootstrapper(r *fakeRunner, cwd string, log Logger) *Bootstrapper {
	return New(Options{
		Runner:     r,
		Git:        config.GitSettings{BaseURL: "git@github.com:", Folder: "orga", CloneRetries: 0},
		Deps:       project.Deps{Loader: plugins.NewLoader(r)},
		Log:        log,
		Getwd:      func() (string, error) { return cwd, nil },
		Executable: func() (string, error) { return testExecutable, nil },
		NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	})
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "bam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadNode(t *testing.T, b *Bootstrapper, path string) *project.Node {
	t.Helper()
	node := project.New(project.FromPath(path), project.WithDeps(b.deps))
	require.NoError(t, node.Load(context.Background()))
	return node
}
