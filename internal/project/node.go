package project

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"
)

// Node is one configuration in the plugin tree: the project's own bam file at
// the root, and one Node per entry of every Plugins list below it.
type Node struct {
	source   Source
	path     string
	resolved *Hooks
	hooks    *Hooks
	children []*Node
	plugin   bool
	deps     Deps
	chain    []string // configuration files being loaded above this node
}

// NodeOption customises a Node at construction.
type NodeOption func(*Node)

// WithDeps injects the collaborators used to resolve the node and its plugins.
func WithDeps(deps Deps) NodeOption {
	return func(n *Node) { n.deps = deps }
}

// AsPlugin marks the node as a plugin of another configuration.
func AsPlugin() NodeOption {
	return func(n *Node) { n.plugin = true }
}

// New creates an unloaded node for src.
func New(src Source, opts ...NodeOption) *Node {
	n := &Node{source: src, path: src.path}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	n.deps = n.deps.withDefaults()
	return n
}

// Load resolves the configuration and then every plugin below it. Resolution
// happens once; later calls only rebuild the plugin tree. The node counts as
// loaded only when the whole tree below it loaded.
func (n *Node) Load(ctx context.Context) error {
	hooks := n.resolved
	if hooks == nil {
		var err error
		if hooks, err = n.resolve(ctx); err != nil {
			return err
		}
		if err := n.checkVersion(hooks); err != nil {
			return err
		}
		n.resolved = hooks
	}
	children, err := n.loadPlugins(ctx, hooks)
	if err != nil {
		n.hooks, n.children = nil, nil
		return err
	}
	n.hooks, n.children = hooks, children
	return nil
}

func (n *Node) resolve(ctx context.Context) (*Hooks, error) {
	if n.source.hooks != nil {
		return n.source.hooks, nil
	}
	path := n.source.path
	if path == "" {
		path = DefaultPath(".", n.deps.Stat)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, NewConfigNotFoundError(path)
	}
	n.path = abs
	if slices.Contains(n.chain, abs) {
		chain := strings.Join(slices.Concat(n.chain, []string{abs}), " -> ")
		return nil, NewConfigLoadError(abs, fmt.Errorf("plugin cycle: %s", chain))
	}
	info, err := n.deps.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, NewConfigNotFoundError(abs)
	}
	if n.deps.Loader == nil {
		return nil, NewConfigLoadError(abs, fmt.Errorf("no configuration loader available"))
	}
	n.deps.logf("loading configuration %s", abs)
	hooks, err := n.deps.Loader.Load(ctx, abs)
	if err != nil {
		return nil, NewConfigLoadError(abs, err)
	}
	if hooks == nil {
		hooks = &Hooks{}
	}
	return hooks, nil
}

func (n *Node) checkVersion(hooks *Hooks) error {
	required := strings.TrimSpace(hooks.ScriptVersion)
	running := strings.TrimSpace(n.deps.Version)
	if required == "" || running == "" {
		return nil
	}
	want, have := canonicalVersion(required), canonicalVersion(running)
	if !semver.IsValid(want) {
		return NewConfigLoadError(n.describe(), fmt.Errorf("invalid scriptVersion %q", required))
	}
	if !semver.IsValid(have) {
		// development builds accept every configuration
		return nil
	}
	if semver.Compare(want, have) > 0 {
		return NewIncompatibleVersionError(required, running)
	}
	return nil
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// loadPlugins loads sibling plugins concurrently and keeps declaration order.
func (n *Node) loadPlugins(ctx context.Context, hooks *Hooks) ([]*Node, error) {
	sources := hooks.Plugins
	chain := n.chain
	if n.path != "" {
		chain = slices.Concat(n.chain, []string{n.path})
	}
	children := make([]*Node, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		child := New(src, WithDeps(n.deps), AsPlugin())
		child.chain = chain
		children[i] = child
		g.Go(func() error {
			if err := child.Load(gctx); err != nil {
				return fmt.Errorf("plugin %d of %s: %w", i+1, n.describe(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return children, nil
}

func (n *Node) checkValid() error {
	if n == nil || n.hooks == nil {
		return NewConfigNotLoadedError()
	}
	return nil
}

func (n *Node) describe() string {
	if n.path != "" {
		return n.path
	}
	return "in-memory configuration"
}

// Loaded reports whether Load has resolved the configuration.
func (n *Node) Loaded() bool { return n != nil && n.hooks != nil }

// IsPlugin reports whether the node was declared by another configuration.
func (n *Node) IsPlugin() bool { return n.plugin }

// Path returns the absolute configuration path, or "" for in-memory configurations.
func (n *Node) Path() string { return n.path }

// Dir returns the directory holding the configuration file, or "" for in-memory ones.
func (n *Node) Dir() string {
	if n.path == "" {
		return ""
	}
	return filepath.Dir(n.path)
}

// Children returns the loaded plugins in declaration order.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Hooks returns the resolved configuration.
func (n *Node) Hooks() (*Hooks, error) {
	if err := n.checkValid(); err != nil {
		return nil, err
	}
	return n.hooks, nil
}

// DirName returns the directory name the project wants to be cloned into.
func (n *Node) DirName() (string, error) {
	if err := n.checkValid(); err != nil {
		return "", err
	}
	return strings.TrimSpace(n.hooks.DirName), nil
}

// LinkedRepos returns the repositories installed alongside the project. It is
// never nil once the node is loaded.
func (n *Node) LinkedRepos() ([]string, error) {
	if err := n.checkValid(); err != nil {
		return nil, err
	}
	repos := make([]string, 0, len(n.hooks.LinkedRepos))
	return append(repos, n.hooks.LinkedRepos...), nil
}
