package project

import (
	"context"
	"flag"
	"strings"

	"github.com/spf13/cast"
)

// Method names one lifecycle step. The set is closed.
type Method string

const (
	MethodInstall Method = "install"
	MethodBuild   Method = "build"
	MethodDeploy  Method = "deploy"
)

// Methods lists every lifecycle method in execution order of a full release.
var Methods = []Method{MethodInstall, MethodBuild, MethodDeploy}

// Valid reports whether m is one of the known lifecycle methods.
func (m Method) Valid() bool {
	switch m {
	case MethodInstall, MethodBuild, MethodDeploy:
		return true
	}
	return false
}

// PostName returns the name of the hook that runs after m (postInstall, ...).
func (m Method) PostName() string {
	name := string(m)
	if name == "" {
		return ""
	}
	return "post" + strings.ToUpper(name[:1]) + name[1:]
}

func (m Method) String() string { return string(m) }

// Options is the parameter bag handed to every hook of a pass.
type Options map[string]any

// String returns the option as a string, or "" when unset.
func (o Options) String(key string) string {
	if o == nil {
		return ""
	}
	return cast.ToString(o[key])
}

// Bool returns the option as a bool, or false when unset or unparsable.
func (o Options) Bool(key string) bool {
	if o == nil {
		return false
	}
	return cast.ToBool(o[key])
}

// BoolOr returns the option as a bool, falling back to def when unset.
func (o Options) BoolOr(key string, def bool) bool {
	if o == nil {
		return def
	}
	value, ok := o[key]
	if !ok || value == nil {
		return def
	}
	parsed, err := cast.ToBoolE(value)
	if err != nil {
		return def
	}
	return parsed
}

// Hook is one lifecycle script.
type Hook func(ctx context.Context, opts Options) error

// Hooks is a resolved bam configuration. Nil hook fields are absent.
type Hooks struct {
	DirName       string
	LinkedRepos   []string
	ScriptVersion string
	Plugins       []Source

	Install     Hook
	Build       Hook
	Deploy      Hook
	PostInstall Hook
	PostBuild   Hook
	PostDeploy  Hook

	// BuildOptions lets a configuration register extra command line flags.
	BuildOptions func(fs *flag.FlagSet) error
}

// Lookup returns the hook registered under a lifecycle or post-hook name.
func (h *Hooks) Lookup(name string) (Hook, bool) {
	if h == nil {
		return nil, false
	}
	var hook Hook
	switch name {
	case "install":
		hook = h.Install
	case "build":
		hook = h.Build
	case "deploy":
		hook = h.Deploy
	case "postInstall":
		hook = h.PostInstall
	case "postBuild":
		hook = h.PostBuild
	case "postDeploy":
		hook = h.PostDeploy
	}
	return hook, hook != nil
}

// Set assigns a hook by name. Unknown names report false.
func (h *Hooks) Set(name string, hook Hook) bool {
	switch name {
	case "install":
		h.Install = hook
	case "build":
		h.Build = hook
	case "deploy":
		h.Deploy = hook
	case "postInstall":
		h.PostInstall = hook
	case "postBuild":
		h.PostBuild = hook
	case "postDeploy":
		h.PostDeploy = hook
	default:
		return false
	}
	return true
}

// HookNames lists every name accepted by Lookup and Set.
func HookNames() []string {
	names := make([]string, 0, len(Methods)*2)
	for _, m := range Methods {
		names = append(names, string(m), m.PostName())
	}
	return names
}
