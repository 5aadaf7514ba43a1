package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/runner"
	"github.com/zclconf/go-cty/cty"
)

// hclConfigFile is the decoding shape of a bam.hcl file.
//
//	script_version = "1.0.0"
//	dir_name       = "web"
//	linked_repos   = ["orga/api"]
//	plugins        = ["plugins/lint.hcl"]
//	env            = { NODE_ENV = "production", HOME_DIR = env.HOME }
//
//	option "minify" {
//	  type    = "bool"
//	  default = "true"
//	}
//
//	hook "build" {
//	  commands = ["npm run build"]
//	}
type hclConfigFile struct {
	ScriptVersion string            `hcl:"script_version,optional"`
	DirName       string            `hcl:"dir_name,optional"`
	LinkedRepos   []string          `hcl:"linked_repos,optional"`
	Plugins       []string          `hcl:"plugins,optional"`
	Env           map[string]string `hcl:"env,optional"`
	Options       []*hclOption      `hcl:"option,block"`
	Hooks         []*hclHook        `hcl:"hook,block"`
}

type hclOption struct {
	Name    string `hcl:"name,label"`
	Type    string `hcl:"type,optional"`
	Usage   string `hcl:"usage,optional"`
	Default string `hcl:"default,optional"`
}

type hclHook struct {
	Name     string   `hcl:"name,label"`
	Commands []string `hcl:"commands"`
}

// ParseConfigHCL decodes a bam.hcl payload into a validated definition.
// Expressions may read the process environment through the env object.
func ParseConfigHCL(data []byte, filename string) (ConfigDefinition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return ConfigDefinition{}, fmt.Errorf("plugin: parse %s: %w", filename, diags)
	}

	var parsed hclConfigFile
	diags = gohcl.DecodeBody(file.Body, hclEvalContext(), &parsed)
	if diags.HasErrors() {
		return ConfigDefinition{}, fmt.Errorf("plugin: decode %s: %w", filename, diags)
	}

	def := ConfigDefinition{
		ScriptVersion: parsed.ScriptVersion,
		DirName:       parsed.DirName,
		LinkedRepos:   parsed.LinkedRepos,
		Env:           parsed.Env,
	}
	for _, p := range parsed.Plugins {
		def.Plugins = append(def.Plugins, PluginRef{Path: p})
	}
	for _, opt := range parsed.Options {
		def.Options = append(def.Options, OptionDefinition{
			Name:    opt.Name,
			Usage:   opt.Usage,
			Type:    opt.Type,
			Default: opt.Default,
		})
	}
	seen := make(map[string]struct{}, len(parsed.Hooks))
	for _, h := range parsed.Hooks {
		if _, dup := seen[h.Name]; dup {
			return ConfigDefinition{}, fmt.Errorf("plugin: %s: hook %q declared twice", filename, h.Name)
		}
		seen[h.Name] = struct{}{}
		list := def.commandList(h.Name)
		if list == nil {
			return ConfigDefinition{}, fmt.Errorf("plugin: %s: unknown hook %q (want one of %s)",
				filename, h.Name, strings.Join(project.HookNames(), ", "))
		}
		*list = CommandList{Lines: h.Commands, Declared: true}
	}
	if err := def.Validate(); err != nil {
		return ConfigDefinition{}, err
	}
	return def.Normalized(), nil
}

// LoadHCLConfig reads a bam.hcl file and compiles it the same way as bam.yaml.
func LoadHCLConfig(path string, r runner.Runner) (*project.Hooks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	def, err := ParseConfigHCL(data, path)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return def.Compile(filepath.Dir(path), r), nil
}

func (def *ConfigDefinition) commandList(name string) *CommandList {
	switch name {
	case string(project.MethodInstall):
		return &def.Install
	case string(project.MethodBuild):
		return &def.Build
	case string(project.MethodDeploy):
		return &def.Deploy
	case project.MethodInstall.PostName():
		return &def.PostInstall
	case project.MethodBuild.PostName():
		return &def.PostBuild
	case project.MethodDeploy.PostName():
		return &def.PostDeploy
	}
	return nil
}

func hclEvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = cty.StringVal(value)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}
