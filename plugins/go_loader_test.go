package plugins

import (
	"context"
	"errors"
	"flag"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kingrea/bam/internal/project"
)

const goConfigSource = `//go:build bam

package main

import (
	"context"
	"flag"
	"fmt"

	"bam"
)

var ScriptVersion = "0.1.0"

var DirName = "go-project"

var LinkedRepos = []string{"orga/api", "orga/web"}

var Plugins = []string{"plugins/lint.yaml"}

func Install(opts map[string]any) error {
	return bam.Shell(fmt.Sprintf("install %v", opts["env"]))
}

func PostInstall() {
	bam.Run("echo", "post-install")
}

func Build(ctx context.Context, opts map[string]any) error {
	if ctx == nil {
		return fmt.Errorf("missing context")
	}
	opts["built"] = true
	return nil
}

func Deploy(opts map[string]any) error {
	return fmt.Errorf("deploy refused for %v", opts["env"])
}

func BuildOptions(fs *flag.FlagSet) error {
	fs.Bool("minify", true, "Minify assets")
	return nil
}
`

func TestLoadGoConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "bam.go"), goConfigSource)
	r := &fakeRunner{}

	hooks, err := LoadGoConfig(path, r)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if hooks.DirName != "go-project" || hooks.ScriptVersion != "0.1.0" {
		t.Fatalf("unexpected hooks: %+v", hooks)
	}
	if !slices.Equal(hooks.LinkedRepos, []string{"orga/api", "orga/web"}) {
		t.Fatalf("linked repos = %v", hooks.LinkedRepos)
	}
	if len(hooks.Plugins) != 1 || hooks.Plugins[0].Path() != filepath.Join(dir, "plugins", "lint.yaml") {
		t.Fatalf("plugins = %+v", hooks.Plugins)
	}
	if hooks.PostBuild != nil || hooks.PostDeploy != nil {
		t.Fatalf("undeclared hooks must stay nil")
	}

	ctx := context.Background()
	opts := project.Options{"env": "staging"}
	if err := hooks.Install(ctx, opts); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := hooks.PostInstall(ctx, opts); err != nil {
		t.Fatalf("postInstall: %v", err)
	}
	if got := r.lines(); !slices.Equal(got, []string{"install staging", "post-install"}) {
		t.Fatalf("commands = %v", got)
	}
	if r.calls[0].Opts.Dir != dir {
		t.Fatalf("commands should run from %s, got %s", dir, r.calls[0].Opts.Dir)
	}

	if err := hooks.Build(ctx, opts); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !opts.Bool("built") {
		t.Fatalf("build should mutate the shared options bag")
	}

	err = hooks.Deploy(ctx, opts)
	if err == nil || !strings.Contains(err.Error(), "deploy refused for staging") {
		t.Fatalf("expected deploy error, got %v", err)
	}

	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	if err := hooks.BuildOptions(fs); err != nil {
		t.Fatalf("build options: %v", err)
	}
	if fs.Lookup("minify") == nil {
		t.Fatalf("expected minify flag to be registered")
	}
}

func TestLoadGoConfigMinimal(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "bam.go"), "package main\n")

	hooks, err := LoadGoConfig(path, &fakeRunner{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if hooks.DirName != "" || hooks.Install != nil || hooks.BuildOptions != nil || len(hooks.LinkedRepos) != 0 {
		t.Fatalf("expected empty hooks, got %+v", hooks)
	}
}

func TestLoadGoConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   string
	}{
		{name: "empty", source: "  "},
		{name: "syntax", source: "package main\nfunc Install( {\n"},
		{name: "hook not a function", source: "package main\nvar Install = 3\n", code: project.ErrCodeInvalidHook},
		{name: "bad parameter", source: "package main\nfunc Build(n int) error { return nil }\n", code: project.ErrCodeInvalidHook},
		{name: "bad result", source: "package main\nfunc Deploy() string { return \"\" }\n", code: project.ErrCodeInvalidHook},
		{name: "bad build options", source: "package main\nfunc BuildOptions() {}\n", code: project.ErrCodeInvalidHook},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(t.TempDir(), "bam.go"), tc.source)
			_, err := LoadGoConfig(path, &fakeRunner{})
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.code != "" && !project.HasCode(err, tc.code) {
				t.Fatalf("expected code %s, got %v", tc.code, err)
			}
		})
	}
}

func TestGoHookPropagatesRunnerFailure(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "bam.go"), goConfigSource)
	boom := errors.New("npm exploded")
	r := &fakeRunner{fail: map[string]error{"install prod": boom}}

	hooks, err := LoadGoConfig(path, r)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := hooks.Install(context.Background(), project.Options{"env": "prod"}); err == nil || !strings.Contains(err.Error(), "npm exploded") {
		t.Fatalf("expected runner failure, got %v", err)
	}
}

type hookValueKey struct{}

func TestGoHookCommandsUseHookContext(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "bam.go"), goConfigSource)
	r := &fakeRunner{}
	hooks, err := LoadGoConfig(path, r)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), hookValueKey{}, "install"))
	cancel()
	if err := hooks.Install(ctx, project.Options{"env": "prod"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := hooks.PostInstall(context.Background(), nil); err != nil {
		t.Fatalf("postInstall: %v", err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("calls = %+v", r.calls)
	}
	if got := r.calls[0].Ctx; got.Value(hookValueKey{}) != "install" || got.Err() == nil {
		t.Fatalf("install command did not receive the hook context")
	}
	if got := r.calls[1].Ctx; got.Value(hookValueKey{}) != nil || got.Err() != nil {
		t.Fatalf("postInstall command kept a stale context")
	}
}
