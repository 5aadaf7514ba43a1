package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/bam/internal/project"
	"gopkg.in/yaml.v3"
)

// ConfigDefinition describes a declarative bam.yaml configuration.
//
// Hooks are shell command lines run from the directory holding the file.
// Plugins are either paths (relative to that directory) or inline definitions.
type ConfigDefinition struct {
	ScriptVersion string             `yaml:"scriptVersion,omitempty"`
	DirName       string             `yaml:"dirName,omitempty"`
	LinkedRepos   []string           `yaml:"linkedRepos,omitempty"`
	Plugins       []PluginRef        `yaml:"plugins,omitempty"`
	Env           map[string]string  `yaml:"env,omitempty"`
	Options       []OptionDefinition `yaml:"options,omitempty"`

	Install     CommandList `yaml:"install,omitempty"`
	Build       CommandList `yaml:"build,omitempty"`
	Deploy      CommandList `yaml:"deploy,omitempty"`
	PostInstall CommandList `yaml:"postInstall,omitempty"`
	PostBuild   CommandList `yaml:"postBuild,omitempty"`
	PostDeploy  CommandList `yaml:"postDeploy,omitempty"`
}

// CommandList accepts either a single command line or a list of them.
// A declared but empty list still counts as a present hook.
type CommandList struct {
	Lines    []string
	Declared bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *CommandList) UnmarshalYAML(value *yaml.Node) error {
	c.Declared = true
	switch value.Kind {
	case yaml.ScalarNode:
		c.Lines = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		var lines []string
		if err := value.Decode(&lines); err != nil {
			return err
		}
		c.Lines = lines
		return nil
	default:
		return fmt.Errorf("line %d: expected a command or a list of commands", value.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (c CommandList) MarshalYAML() (any, error) {
	if len(c.Lines) == 1 {
		return c.Lines[0], nil
	}
	return c.Lines, nil
}

// PluginRef is one entry of the plugins list.
type PluginRef struct {
	Path   string
	Inline *ConfigDefinition
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PluginRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		p.Path = value.Value
		return nil
	case yaml.MappingNode:
		var inline ConfigDefinition
		if err := value.Decode(&inline); err != nil {
			return err
		}
		p.Inline = &inline
		return nil
	default:
		return fmt.Errorf("line %d: plugin must be a path or a mapping", value.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (p PluginRef) MarshalYAML() (any, error) {
	if p.Inline != nil {
		return p.Inline, nil
	}
	return p.Path, nil
}

// OptionDefinition declares a command line flag contributed by the configuration.
type OptionDefinition struct {
	Name    string `yaml:"name"`
	Usage   string `yaml:"usage,omitempty"`
	Type    string `yaml:"type,omitempty"`
	Default string `yaml:"default,omitempty"`
}

func (def OptionDefinition) normalized() OptionDefinition {
	clone := OptionDefinition{
		Name:    strings.TrimLeft(strings.TrimSpace(def.Name), "-"),
		Usage:   strings.TrimSpace(def.Usage),
		Type:    strings.ToLower(strings.TrimSpace(def.Type)),
		Default: strings.TrimSpace(def.Default),
	}
	if clone.Type == "" {
		clone.Type = "string"
	}
	return clone
}

// Validate ensures the option can be registered on a flag set.
func (def OptionDefinition) Validate() error {
	normalized := def.normalized()
	if normalized.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch normalized.Type {
	case "string", "bool":
	default:
		return fmt.Errorf("option %s: type must be 'string' or 'bool'", normalized.Name)
	}
	return nil
}

// Normalized returns a trimmed, copy-on-write variant of the definition.
func (def ConfigDefinition) Normalized() ConfigDefinition {
	clone := def
	clone.ScriptVersion = strings.TrimSpace(def.ScriptVersion)
	clone.DirName = strings.TrimSpace(def.DirName)
	clone.LinkedRepos = nil
	for _, repo := range def.LinkedRepos {
		if trimmed := strings.TrimSpace(repo); trimmed != "" {
			clone.LinkedRepos = append(clone.LinkedRepos, trimmed)
		}
	}
	if len(def.Plugins) > 0 {
		clone.Plugins = make([]PluginRef, len(def.Plugins))
		for i, ref := range def.Plugins {
			clone.Plugins[i] = PluginRef{Path: strings.TrimSpace(ref.Path)}
			if ref.Inline != nil {
				inline := ref.Inline.Normalized()
				clone.Plugins[i].Inline = &inline
			}
		}
	}
	if len(def.Env) > 0 {
		clone.Env = make(map[string]string, len(def.Env))
		for key, value := range def.Env {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			clone.Env[trimmed] = value
		}
	}
	if len(def.Options) > 0 {
		clone.Options = make([]OptionDefinition, len(def.Options))
		for i, opt := range def.Options {
			clone.Options[i] = opt.normalized()
		}
	}
	return clone
}

// Validate ensures the definition can be compiled into hooks.
func (def ConfigDefinition) Validate() error {
	normalized := def.Normalized()
	for idx, ref := range normalized.Plugins {
		if ref.Inline == nil && ref.Path == "" {
			return fmt.Errorf("plugins[%d]: path is required", idx)
		}
		if ref.Inline != nil {
			if err := ref.Inline.Validate(); err != nil {
				return fmt.Errorf("plugins[%d]: %w", idx, err)
			}
		}
	}
	seen := make(map[string]struct{}, len(normalized.Options))
	for idx, opt := range normalized.Options {
		if err := opt.Validate(); err != nil {
			return fmt.Errorf("options[%d]: %w", idx, err)
		}
		if _, exists := seen[opt.Name]; exists {
			return fmt.Errorf("options[%d]: duplicate option %s", idx, opt.Name)
		}
		seen[opt.Name] = struct{}{}
	}
	for name, list := range normalized.commands() {
		for idx, line := range list.Lines {
			if strings.TrimSpace(line) == "" {
				return fmt.Errorf("%s[%d]: command is empty", name, idx)
			}
		}
	}
	return nil
}

func (def ConfigDefinition) commands() map[string]CommandList {
	return map[string]CommandList{
		string(project.MethodInstall):    def.Install,
		string(project.MethodBuild):      def.Build,
		string(project.MethodDeploy):     def.Deploy,
		project.MethodInstall.PostName(): def.PostInstall,
		project.MethodBuild.PostName():   def.PostBuild,
		project.MethodDeploy.PostName():  def.PostDeploy,
	}
}
