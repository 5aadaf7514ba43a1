package cli

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kingrea/bam/internal/project"
	"gopkg.in/yaml.v3"
)

// keyValueFlag collects repeatable key=value option overrides.
type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

// commandFlags is a flag set plus the names (short aliases, overrides) that
// are kept out of the options bag.
type commandFlags struct {
	fs          *flag.FlagSet
	hidden      map[string]struct{}
	sets        keyValueFlag
	optionsFile string
	config      string
}

func newCommandFlags(name string) *commandFlags {
	fs := flag.NewFlagSet("bam "+name, flag.ContinueOnError)
	cf := &commandFlags{fs: fs, hidden: map[string]struct{}{}}
	cf.stringVar(&cf.config, "config", "c", "", "Path of the bam configuration (default bam.go, bam.yaml, bam.yml or bam.hcl)")
	fs.Var(&cf.sets, "set", "Extra option passed to hooks (key=value, repeatable)")
	fs.StringVar(&cf.optionsFile, "options-file", "", "YAML file with extra options passed to hooks")
	cf.hide("set")
	cf.hide("options-file")
	return cf
}

func (cf *commandFlags) hide(name string) {
	cf.hidden[name] = struct{}{}
}

func (cf *commandFlags) stringVar(p *string, name, short, value, usage string) {
	cf.fs.StringVar(p, name, value, usage)
	if short != "" {
		cf.fs.StringVar(p, short, value, "Shorthand for --"+name)
		cf.hide(short)
	}
}

func (cf *commandFlags) boolVar(p *bool, name, short string, value bool, usage string) {
	cf.fs.BoolVar(p, name, value, usage)
	if short != "" {
		cf.fs.BoolVar(p, short, value, "Shorthand for --"+name)
		cf.hide(short)
	}
}

// registerConfigOptions lets the loaded configuration contribute flags. A
// redefined flag panics inside the flag package; it is reported as an error.
func (cf *commandFlags) registerConfigOptions(node *project.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cli: configuration options: %v", r)
		}
	}()
	return node.BuildOptions(cf.fs)
}

// options builds the bag handed to hooks: every flag under its long name,
// then the options file, then --set overrides.
func (cf *commandFlags) options() (project.Options, error) {
	opts := project.Options{}
	cf.fs.VisitAll(func(f *flag.Flag) {
		if _, skip := cf.hidden[f.Name]; skip {
			return
		}
		if getter, ok := f.Value.(flag.Getter); ok {
			opts[f.Name] = getter.Get()
			return
		}
		opts[f.Name] = f.Value.String()
	})
	if path := strings.TrimSpace(cf.optionsFile); path != "" {
		extra, err := readOptionsFile(path)
		if err != nil {
			return nil, err
		}
		for key, value := range extra {
			opts[key] = value
		}
	}
	for key, value := range cf.sets {
		opts[key] = value
	}
	return opts, nil
}

func readOptionsFile(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open options file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse options file %s: %w", path, err)
	}
	return raw, nil
}

// configFlagValue finds -c/--config before the flag set exists, since the
// configuration decides which other flags are defined.
func configFlagValue(args []string) string {
	for idx := 0; idx < len(args); idx++ {
		arg := args[idx]
		if arg == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || (name != "c" && name != "config") {
			continue
		}
		if hasValue {
			return value
		}
		if idx+1 < len(args) {
			return args[idx+1]
		}
	}
	return ""
}
