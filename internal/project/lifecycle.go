package project

import (
	"context"
	"flag"
	"slices"
)

// RunUserMethod runs method across the plugin tree and then on the node itself.
//
// When the node does not declare method the call is a no-op, or MissingScript
// when required is set; its plugins are not visited in either case. Plugins
// run one after another in declaration order and never require the method.
func (n *Node) RunUserMethod(ctx context.Context, method Method, opts Options, required bool) error {
	if err := n.checkValid(); err != nil {
		return err
	}
	own := NewCallable(n.hooks, string(method), opts)
	if !own.Exists() {
		if required {
			return NewMissingScriptError(string(method))
		}
		return nil
	}
	if err := n.runPlugins(ctx, method, opts); err != nil {
		return err
	}
	n.deps.logf("running %s of %s", method, n.describe())
	return own.Call(ctx)
}

func (n *Node) runPlugins(ctx context.Context, method Method, opts Options) error {
	for _, child := range n.children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := child.RunUserMethod(ctx, method, opts, false); err != nil {
			return err
		}
	}
	return nil
}

// RunPostMethod runs the post hook of method over the tree: plugins last
// declared first, each with its own subtree, then the node's own hook.
// Missing post hooks are skipped.
func (n *Node) RunPostMethod(ctx context.Context, method Method, opts Options) error {
	if err := n.checkValid(); err != nil {
		return err
	}
	for _, child := range slices.Backward(n.children) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := child.RunPostMethod(ctx, method, opts); err != nil {
			return err
		}
	}
	own := NewCallable(n.hooks, method.PostName(), opts)
	if !own.Exists() {
		return nil
	}
	n.deps.logf("running %s of %s", method.PostName(), n.describe())
	return own.Call(ctx)
}

// BuildOptions lets every configuration in the tree register command line
// flags, plugins first.
func (n *Node) BuildOptions(fs *flag.FlagSet) error {
	if err := n.checkValid(); err != nil {
		return err
	}
	for _, child := range n.children {
		if err := child.BuildOptions(fs); err != nil {
			return err
		}
	}
	if n.hooks.BuildOptions == nil {
		return nil
	}
	return n.hooks.BuildOptions(fs)
}

// LaunchOptions tunes a Launch call.
type LaunchOptions struct {
	// Optional turns a missing method on the node into a no-op.
	Optional bool
	// SkipPost suppresses the post pass, e.g. when the caller runs it later.
	SkipPost bool
}

// Launch runs the forward pass of method and, unless the node is a plugin or
// the caller asked otherwise, the post pass.
func (n *Node) Launch(ctx context.Context, method Method, opts Options, lo LaunchOptions) error {
	if err := n.RunUserMethod(ctx, method, opts, !lo.Optional); err != nil {
		return err
	}
	if n.plugin || lo.SkipPost {
		return nil
	}
	return n.RunPostMethod(ctx, method, opts)
}

// Install launches the install lifecycle.
func (n *Node) Install(ctx context.Context, opts Options, lo LaunchOptions) error {
	return n.Launch(ctx, MethodInstall, opts, lo)
}

// Build launches the build lifecycle. The build script is required.
func (n *Node) Build(ctx context.Context, opts Options) error {
	return n.Launch(ctx, MethodBuild, opts, LaunchOptions{})
}

// Deploy launches the deploy lifecycle. The deploy script is required.
func (n *Node) Deploy(ctx context.Context, opts Options) error {
	return n.Launch(ctx, MethodDeploy, opts, LaunchOptions{})
}
