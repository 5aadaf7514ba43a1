package plugins

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/runner"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// ParseConfigYAML decodes and validates a bam.yaml payload.
func ParseConfigYAML(data []byte) (ConfigDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ConfigDefinition{}, nil
	}
	var def ConfigDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return ConfigDefinition{}, fmt.Errorf("plugin: decode config: %w", err)
	}
	if err := def.Validate(); err != nil {
		return ConfigDefinition{}, err
	}
	return def.Normalized(), nil
}

// LoadYAMLConfig reads a bam.yaml file and compiles it into hooks whose
// commands run from the file's directory.
func LoadYAMLConfig(path string, r runner.Runner) (*project.Hooks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	def, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return def.Compile(filepath.Dir(path), r), nil
}

// Compile turns the definition into hooks. Relative plugin paths and command
// working directories are resolved against dir.
func (def ConfigDefinition) Compile(dir string, r runner.Runner) *project.Hooks {
	hooks := &project.Hooks{
		ScriptVersion: def.ScriptVersion,
		DirName:       def.DirName,
		LinkedRepos:   append([]string(nil), def.LinkedRepos...),
	}
	for _, ref := range def.Plugins {
		if ref.Inline != nil {
			hooks.Plugins = append(hooks.Plugins, project.FromHooks(ref.Inline.Compile(dir, r)))
			continue
		}
		hooks.Plugins = append(hooks.Plugins, project.FromPath(resolvePath(dir, ref.Path)))
	}
	for name, list := range def.commands() {
		if !list.Declared {
			continue
		}
		hooks.Set(name, commandHook(r, dir, def.Env, list.Lines))
	}
	if len(def.Options) > 0 {
		options := append([]OptionDefinition(nil), def.Options...)
		hooks.BuildOptions = func(fs *flag.FlagSet) error {
			return registerOptions(fs, options)
		}
	}
	return hooks
}

func commandHook(r runner.Runner, dir string, env map[string]string, lines []string) project.Hook {
	lines = append([]string(nil), lines...)
	return func(ctx context.Context, opts project.Options) error {
		runOpts := runner.RunOptions{Dir: dir, Env: hookEnv(env, opts)}
		for _, line := range lines {
			if err := runner.Shell(ctx, r, line, runOpts); err != nil {
				return err
			}
		}
		return nil
	}
}

// hookEnv exports every option as BAM_<NAME> next to the declared env.
func hookEnv(env map[string]string, opts project.Options) []string {
	var vars []string
	for key, value := range opts {
		if value == nil {
			continue
		}
		vars = append(vars, fmt.Sprintf("%s=%s", OptionEnvName(key), cast.ToString(value)))
	}
	for key, value := range env {
		vars = append(vars, fmt.Sprintf("%s=%s", key, os.ExpandEnv(value)))
	}
	sort.Strings(vars)
	return vars
}

// OptionEnvName maps an option name to the variable exported to commands.
func OptionEnvName(option string) string {
	upper := strings.ToUpper(strings.TrimSpace(option))
	upper = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
	return "BAM_" + upper
}

func registerOptions(fs *flag.FlagSet, options []OptionDefinition) error {
	for _, opt := range options {
		if fs.Lookup(opt.Name) != nil {
			return fmt.Errorf("plugin: option %s is already defined", opt.Name)
		}
		switch opt.Type {
		case "bool":
			def, err := cast.ToBoolE(orDefault(opt.Default, "false"))
			if err != nil {
				return fmt.Errorf("plugin: option %s: %w", opt.Name, err)
			}
			fs.Bool(opt.Name, def, opt.Usage)
		default:
			fs.String(opt.Name, opt.Default, opt.Usage)
		}
	}
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
