package project

import "context"

// Callable describes a hook invocation before anyone knows whether it can run.
// The target is borrowed; a nil target stands for "the plugin currently being
// visited" and is filled in with Bind during tree traversal.
type Callable struct {
	target *Hooks
	method string
	opts   Options
}

// NewCallable pairs a target configuration with a hook name and its options.
func NewCallable(target *Hooks, method string, opts Options) Callable {
	return Callable{target: target, method: method, opts: opts}
}

// Bind returns a copy of c dispatched against target.
func (c Callable) Bind(target *Hooks) Callable {
	c.target = target
	return c
}

// Method returns the hook name.
func (c Callable) Method() string { return c.method }

// Exists reports whether the target declares the hook.
func (c Callable) Exists() bool {
	_, ok := c.target.Lookup(c.method)
	return ok
}

// Call runs the hook and returns its result. Callers are expected to check
// Exists first; an absent hook yields MethodNotFound.
func (c Callable) Call(ctx context.Context) error {
	hook, ok := c.target.Lookup(c.method)
	if !ok {
		return NewMethodNotFoundError(c.method)
	}
	return hook(ctx, c.opts)
}
