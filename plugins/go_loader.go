package plugins

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/runner"
	"github.com/spf13/cast"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Symbols read from a bam.go script. Hook functions are named after the
// lifecycle method with an upper-case first letter (Install, PostBuild, ...).
const (
	goDirNameSymbol       = "DirName"
	goLinkedReposSymbol   = "LinkedRepos"
	goPluginsSymbol       = "Plugins"
	goScriptVersionSymbol = "ScriptVersion"
	goBuildOptionsSymbol  = "BuildOptions"
)

// ScriptBuildTag is set while bam evaluates a bam.go script. Scripts carry a
// "//go:build bam" line so the Go toolchain leaves them out of the project's
// own packages.
const ScriptBuildTag = "bam"

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	optionsType = reflect.TypeOf(map[string]any{})
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	flagSetType = reflect.TypeOf(&flag.FlagSet{})
)

// LoadGoConfig evaluates a bam.go script with yaegi and collects the symbols it
// declares. Scripts may import "bam" to run commands from their directory.
func LoadGoConfig(path string, r runner.Runner) (*project.Hooks, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	dir := filepath.Dir(path)
	i := interp.New(interp.Options{BuildTags: []string{ScriptBuildTag}})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: load stdlib symbols: %w", err)
	}
	calls := &hookContext{}
	if err := i.Use(scriptSymbols(dir, r, calls)); err != nil {
		return nil, fmt.Errorf("plugin: load bam symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}

	hooks := &project.Hooks{}
	if v, ok := lookupSymbol(i, goDirNameSymbol); ok {
		hooks.DirName = cast.ToString(v.Interface())
	}
	if v, ok := lookupSymbol(i, goScriptVersionSymbol); ok {
		hooks.ScriptVersion = cast.ToString(v.Interface())
	}
	if v, ok := lookupSymbol(i, goLinkedReposSymbol); ok {
		repos, err := cast.ToStringSliceE(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %s must be a list of strings: %w", path, goLinkedReposSymbol, err)
		}
		hooks.LinkedRepos = repos
	}
	if v, ok := lookupSymbol(i, goPluginsSymbol); ok {
		paths, err := cast.ToStringSliceE(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %s must be a list of paths: %w", path, goPluginsSymbol, err)
		}
		for _, p := range paths {
			hooks.Plugins = append(hooks.Plugins, project.FromPath(resolvePath(dir, p)))
		}
	}
	for _, name := range project.HookNames() {
		v, ok := lookupSymbol(i, exportedName(name))
		if !ok {
			continue
		}
		hook, err := wrapHookFunc(exportedName(name), v, calls)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", path, err)
		}
		hooks.Set(name, hook)
	}
	if v, ok := lookupSymbol(i, goBuildOptionsSymbol); ok {
		register, err := wrapBuildOptionsFunc(v)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", path, err)
		}
		hooks.BuildOptions = register
	}
	return hooks, nil
}

// lookupSymbol reports whether the evaluated script declares name.
func lookupSymbol(i *interp.Interpreter, name string) (reflect.Value, bool) {
	v, err := i.Eval(name)
	if err != nil || !v.IsValid() {
		return reflect.Value{}, false
	}
	return v, true
}

func exportedName(hook string) string {
	if hook == "" {
		return ""
	}
	return strings.ToUpper(hook[:1]) + hook[1:]
}

// hookContext carries the context of the running hook to the bam package
// functions a script calls.
type hookContext struct {
	mu  sync.Mutex
	ctx context.Context
}

func (h *hookContext) enter(ctx context.Context) (restore func()) {
	h.mu.Lock()
	previous := h.ctx
	h.ctx = ctx
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		h.ctx = previous
		h.mu.Unlock()
	}
}

func (h *hookContext) current() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil {
		return context.Background()
	}
	return h.ctx
}

// wrapHookFunc accepts func([context.Context], [map[string]any]) [error].
func wrapHookFunc(name string, fn reflect.Value, calls *hookContext) (project.Hook, error) {
	if fn.Kind() != reflect.Func {
		return nil, project.NewInvalidHookError(name, "is not a function")
	}
	typ := fn.Type()
	if typ.NumIn() > 2 {
		return nil, project.NewInvalidHookError(name, "accepts at most (context.Context, map[string]any)")
	}
	for idx := 0; idx < typ.NumIn(); idx++ {
		in := typ.In(idx)
		if in != contextType && in != optionsType {
			return nil, project.NewInvalidHookError(name, fmt.Sprintf("unsupported parameter type %s", in))
		}
	}
	if err := checkErrorResult(name, typ); err != nil {
		return nil, err
	}
	return func(ctx context.Context, opts project.Options) error {
		defer calls.enter(ctx)()
		args := make([]reflect.Value, typ.NumIn())
		for idx := range args {
			if typ.In(idx) == contextType {
				args[idx] = reflect.ValueOf(&ctx).Elem()
				continue
			}
			args[idx] = reflect.ValueOf(map[string]any(opts))
		}
		return errorResult(fn.Call(args))
	}, nil
}

// wrapBuildOptionsFunc accepts func(*flag.FlagSet) [error].
func wrapBuildOptionsFunc(fn reflect.Value) (func(*flag.FlagSet) error, error) {
	if fn.Kind() != reflect.Func {
		return nil, project.NewInvalidHookError(goBuildOptionsSymbol, "is not a function")
	}
	typ := fn.Type()
	if typ.NumIn() != 1 || typ.In(0) != flagSetType {
		return nil, project.NewInvalidHookError(goBuildOptionsSymbol, "must accept a single *flag.FlagSet")
	}
	if err := checkErrorResult(goBuildOptionsSymbol, typ); err != nil {
		return nil, err
	}
	return func(fs *flag.FlagSet) error {
		return errorResult(fn.Call([]reflect.Value{reflect.ValueOf(fs)}))
	}, nil
}

func checkErrorResult(name string, typ reflect.Type) error {
	switch typ.NumOut() {
	case 0:
		return nil
	case 1:
		if typ.Out(0).Implements(errorType) {
			return nil
		}
	}
	return project.NewInvalidHookError(name, "may only return an error")
}

func errorResult(results []reflect.Value) error {
	if len(results) == 0 || results[0].IsNil() {
		return nil
	}
	if err, ok := results[0].Interface().(error); ok {
		return err
	}
	return fmt.Errorf("hook returned non-error value %v", results[0].Interface())
}

// scriptSymbols exposes the "bam" package to scripts. Commands run with the
// context of the hook that started them.
func scriptSymbols(dir string, r runner.Runner, calls *hookContext) interp.Exports {
	run := func(name string, args ...string) error {
		return r.Run(calls.current(), name, args, runner.RunOptions{Dir: dir})
	}
	shell := func(line string) error {
		return runner.Shell(calls.current(), r, line, runner.RunOptions{Dir: dir})
	}
	scriptDir := func() string { return dir }
	return interp.Exports{
		"bam/bam": {
			"Run":   reflect.ValueOf(run),
			"Shell": reflect.ValueOf(shell),
			"Dir":   reflect.ValueOf(scriptDir),
		},
	}
}
