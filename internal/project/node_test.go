package project

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingDeps struct {
	mu     sync.Mutex
	stats  map[string]int
	loads  map[string]int
	byPath map[string]*Hooks
	delay  map[string]time.Duration
}

func newCountingDeps() *countingDeps {
	return &countingDeps{
		stats:  map[string]int{},
		loads:  map[string]int{},
		byPath: map[string]*Hooks{},
		delay:  map[string]time.Duration{},
	}
}

func (c *countingDeps) deps() Deps {
	return Deps{
		Stat: func(path string) (fs.FileInfo, error) {
			c.mu.Lock()
			c.stats[path]++
			c.mu.Unlock()
			return os.Stat(path)
		},
		Loader: LoaderFunc(func(_ context.Context, path string) (*Hooks, error) {
			c.mu.Lock()
			c.loads[path]++
			hooks := c.byPath[path]
			wait := c.delay[path]
			c.mu.Unlock()
			if wait > 0 {
				time.Sleep(wait)
			}
			if hooks == nil {
				return nil, errors.New("unknown fixture")
			}
			return hooks, nil
		}),
	}
}

func writeFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))
	return path
}

func TestLoadFromHooksSkipsFilesystem(t *testing.T) {
	deps := newCountingDeps()
	hooks := &Hooks{DirName: "my-project"}
	node := New(FromHooks(hooks), WithDeps(deps.deps()))

	require.NoError(t, node.Load(context.Background()))
	require.Empty(t, deps.stats)

	got, err := node.Hooks()
	require.NoError(t, err)
	require.Same(t, hooks, got)
	dirName, err := node.DirName()
	require.NoError(t, err)
	require.Equal(t, "my-project", dirName)
	require.False(t, node.IsPlugin())
	require.Empty(t, node.Path())
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "bam.go")
	deps := newCountingDeps()
	deps.byPath[path] = &Hooks{DirName: "from-file"}

	node := New(FromPath(path), WithDeps(deps.deps()))
	require.NoError(t, node.Load(context.Background()))

	dirName, err := node.DirName()
	require.NoError(t, err)
	require.Equal(t, "from-file", dirName)
	require.Equal(t, path, node.Path())
	require.Equal(t, dir, node.Dir())
}

func TestLoadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "bam.go")
	deps := newCountingDeps()
	deps.byPath[path] = &Hooks{
		DirName: "same",
		Plugins: []Source{FromHooks(&Hooks{DirName: "child"})},
	}

	node := New(FromPath(path), WithDeps(deps.deps()))
	require.NoError(t, node.Load(context.Background()))
	first, _ := node.Hooks()
	require.NoError(t, node.Load(context.Background()))
	second, _ := node.Hooks()

	require.Same(t, first, second)
	require.Equal(t, 1, deps.stats[path])
	require.Equal(t, 1, deps.loads[path])
	require.Len(t, node.Children(), 1)
}

func TestLoadMissingFile(t *testing.T) {
	node := New(FromPath(filepath.Join(t.TempDir(), "notExist")), WithDeps(newCountingDeps().deps()))

	err := node.Load(context.Background())
	require.True(t, HasCode(err, ErrCodeConfigNotFound))
	require.Contains(t, err.Error(), "notExist")
	require.False(t, node.Loaded())
}

func TestLoadRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	node := New(FromPath(dir), WithDeps(newCountingDeps().deps()))

	err := node.Load(context.Background())
	require.True(t, HasCode(err, ErrCodeConfigNotFound))
}

func TestLoadDefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	node := New(Source{}, WithDeps(newCountingDeps().deps()))
	err := node.Load(context.Background())
	require.True(t, HasCode(err, ErrCodeConfigNotFound))
	require.Equal(t, "bam.go", filepath.Base(node.Path()))

	yamlPath := writeFixture(t, dir, "bam.yaml")
	resolved, err := filepath.EvalSymlinks(yamlPath)
	require.NoError(t, err)
	deps := newCountingDeps()
	deps.byPath[yamlPath] = &Hooks{DirName: "yaml"}
	deps.byPath[resolved] = deps.byPath[yamlPath]
	node = New(FromPath(""), WithDeps(deps.deps()))
	require.NoError(t, node.Load(context.Background()))
	require.Equal(t, "bam.yaml", filepath.Base(node.Path()))
}

func TestDefaultPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "bam.hcl")
	require.Equal(t, filepath.Join(dir, "bam.hcl"), DefaultPath(dir, nil))

	writeFixture(t, dir, "bam.yml")
	require.Equal(t, filepath.Join(dir, "bam.yml"), DefaultPath(dir, nil))

	writeFixture(t, dir, "bam.go")
	require.Equal(t, filepath.Join(dir, "bam.go"), DefaultPath(dir, nil))
}

func TestLoadWithoutLoader(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "bam.go")
	node := New(FromPath(path))

	err := node.Load(context.Background())
	require.True(t, HasCode(err, ErrCodeConfigLoadFailed))
}

func TestPluginsKeepDeclarationOrder(t *testing.T) {
	dir := t.TempDir()
	deps := newCountingDeps()
	var sources []Source
	names := []string{"slow.go", "medium.go", "fast.go"}
	for i, name := range names {
		path := writeFixture(t, dir, name)
		deps.byPath[path] = &Hooks{DirName: name}
		deps.delay[path] = time.Duration(len(names)-i) * 20 * time.Millisecond
		sources = append(sources, FromPath(path))
	}

	root := New(FromHooks(&Hooks{Plugins: sources}), WithDeps(deps.deps()))
	require.NoError(t, root.Load(context.Background()))

	children := root.Children()
	require.Len(t, children, len(names))
	for i, child := range children {
		require.True(t, child.IsPlugin())
		dirName, err := child.DirName()
		require.NoError(t, err)
		require.Equal(t, names[i], dirName)
	}
}

func TestNestedPluginsAreLoaded(t *testing.T) {
	grandchild := &Hooks{DirName: "grandchild"}
	root := New(FromHooks(&Hooks{
		Plugins: []Source{FromHooks(&Hooks{Plugins: []Source{FromHooks(grandchild)}})},
	}))
	require.NoError(t, root.Load(context.Background()))

	child := root.Children()[0]
	require.Len(t, child.Children(), 1)
	got, err := child.Children()[0].Hooks()
	require.NoError(t, err)
	require.Same(t, grandchild, got)
	require.True(t, child.Children()[0].IsPlugin())
}

func TestPluginFailureFailsParent(t *testing.T) {
	root := New(FromHooks(&Hooks{
		Plugins: []Source{
			FromHooks(&Hooks{}),
			FromPath(filepath.Join(t.TempDir(), "missing.go")),
		},
	}), WithDeps(newCountingDeps().deps()))

	err := root.Load(context.Background())
	require.True(t, HasCode(err, ErrCodeConfigNotFound))
	require.Contains(t, err.Error(), "plugin 2")
}

func TestPluginFailureLeavesParentUnloaded(t *testing.T) {
	var ran bool
	root := New(FromHooks(&Hooks{
		DirName: "root",
		Plugins: []Source{FromPath(filepath.Join(t.TempDir(), "missing", "bam.go"))},
		Install: func(context.Context, Options) error {
			ran = true
			return nil
		},
	}), WithDeps(newCountingDeps().deps()))

	require.Error(t, root.Load(context.Background()))
	require.False(t, root.Loaded())
	require.Empty(t, root.Children())
	_, err := root.DirName()
	require.True(t, HasCode(err, ErrCodeConfigNotLoaded))

	err = root.Install(context.Background(), Options{}, LaunchOptions{})
	require.True(t, HasCode(err, ErrCodeConfigNotLoaded))
	require.False(t, ran)
}

func TestPluginCycleFailsLoad(t *testing.T) {
	dir := t.TempDir()
	self := writeFixture(t, dir, "self.go")
	a := writeFixture(t, dir, "a.go")
	b := writeFixture(t, dir, "b.go")
	deps := newCountingDeps()
	deps.byPath[self] = &Hooks{Plugins: []Source{FromPath(self)}}
	deps.byPath[a] = &Hooks{Plugins: []Source{FromHooks(&Hooks{Plugins: []Source{FromPath(b)}})}}
	deps.byPath[b] = &Hooks{Plugins: []Source{FromPath(a)}}

	for _, path := range []string{self, a} {
		node := New(FromPath(path), WithDeps(deps.deps()))
		err := node.Load(context.Background())
		require.True(t, HasCode(err, ErrCodeConfigLoadFailed), "%s: %v", path, err)
		require.False(t, node.Loaded())
	}
}

func TestSharedPluginIsNotACycle(t *testing.T) {
	dir := t.TempDir()
	shared := writeFixture(t, dir, "shared.go")
	deps := newCountingDeps()
	deps.byPath[shared] = &Hooks{DirName: "shared"}

	root := New(FromHooks(&Hooks{Plugins: []Source{FromPath(shared), FromPath(shared)}}), WithDeps(deps.deps()))
	require.NoError(t, root.Load(context.Background()))
	require.Len(t, root.Children(), 2)
}

func TestAccessorsRequireLoad(t *testing.T) {
	node := New(FromHooks(&Hooks{DirName: "x", LinkedRepos: []string{"a"}}))

	_, err := node.DirName()
	require.True(t, HasCode(err, ErrCodeConfigNotLoaded))
	_, err = node.LinkedRepos()
	require.True(t, HasCode(err, ErrCodeConfigNotLoaded))
	_, err = node.Hooks()
	require.True(t, HasCode(err, ErrCodeConfigNotLoaded))
}

func TestLinkedRepos(t *testing.T) {
	node := New(FromHooks(&Hooks{LinkedRepos: []string{"repo1", "rep2", "r3"}}))
	require.NoError(t, node.Load(context.Background()))
	repos, err := node.LinkedRepos()
	require.NoError(t, err)
	require.Equal(t, []string{"repo1", "rep2", "r3"}, repos)

	empty := New(FromHooks(&Hooks{}))
	require.NoError(t, empty.Load(context.Background()))
	repos, err = empty.LinkedRepos()
	require.NoError(t, err)
	require.NotNil(t, repos)
	require.Empty(t, repos)
}

func TestScriptVersionCheck(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		running string
		code    string
	}{
		{name: "older script", script: "0.1.0", running: "1.2.0"},
		{name: "same version", script: "v1.2.0", running: "1.2.0"},
		{name: "dev build", script: "9.0.0", running: "dev"},
		{name: "newer script", script: "2.0.0", running: "1.2.0", code: ErrCodeIncompatibleVersion},
		{name: "garbage", script: "latest", running: "1.2.0", code: ErrCodeConfigLoadFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			node := New(FromHooks(&Hooks{ScriptVersion: tc.script}), WithDeps(Deps{Version: tc.running}))
			err := node.Load(context.Background())
			if tc.code == "" {
				require.NoError(t, err)
				return
			}
			require.True(t, HasCode(err, tc.code), "got %v", err)
			require.False(t, node.Loaded())
		})
	}
}
