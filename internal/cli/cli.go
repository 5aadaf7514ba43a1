// Package cli implements the bam command line: argument parsing, configuration
// loading and dispatch to the lifecycle and bootstrap packages.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kingrea/bam/internal/bootstrap"
	"github.com/kingrea/bam/internal/config"
	"github.com/kingrea/bam/internal/logbook"
	"github.com/kingrea/bam/internal/logging"
	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/runner"
	"github.com/kingrea/bam/plugins"
	"github.com/mattn/go-isatty"
)

const keepJournals = 20

// Options wires an App. Zero fields fall back to the real process.
type Options struct {
	Version string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Runner  runner.Runner
	// Loader reads configuration files; defaults to the plugins loader.
	Loader project.Loader
	// Settings are the tool settings; defaults to $BAM_HOME/config.yaml.
	Settings   *config.Config
	Getwd      func() (string, error)
	Executable func() (string, error)
	IsTerminal func() bool
}

// App runs bam commands. A loaded configuration is cached for the lifetime of
// the App so option parsing and execution share one plugin tree.
type App struct {
	version    string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	runner     runner.Runner
	loader     project.Loader
	settings   *config.Config
	getwd      func() (string, error)
	executable func() (string, error)
	isTerminal func() bool

	log  *logging.Logger
	node *project.Node
}

type command struct {
	name    string
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = []command{
	{name: "install", summary: "Run the install lifecycle (--setup: rename, fetch linked repositories, install)", run: (*App).install},
	{name: "build", summary: "Run the build lifecycle", run: (*App).build},
	{name: "deploy", summary: "Run the deploy lifecycle (--build: build first)", run: (*App).deploy},
	{name: "clone", summary: "Clone a repository and set it up", run: (*App).clone},
	{name: "init", summary: "Write a starter bam configuration", run: (*App).initConfig},
	{name: "logs", summary: "Print the end of the previous run's journal", run: (*App).printLogs},
	{name: "version", summary: "Print the bam version", run: (*App).printVersion},
}

// New returns an App for opts.
func New(opts Options) *App {
	a := &App{
		version:    opts.Version,
		stdin:      opts.Stdin,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
		runner:     opts.Runner,
		loader:     opts.Loader,
		settings:   opts.Settings,
		getwd:      opts.Getwd,
		executable: opts.Executable,
		isTerminal: opts.IsTerminal,
	}
	if a.stdin == nil {
		a.stdin = os.Stdin
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	if a.runner == nil {
		a.runner = runner.NewExec()
	}
	if a.loader == nil {
		a.loader = plugins.NewLoader(a.runner)
	}
	if a.getwd == nil {
		a.getwd = os.Getwd
	}
	if a.executable == nil {
		a.executable = os.Executable
	}
	if a.isTerminal == nil {
		a.isTerminal = func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
		}
	}
	return a
}

// Run executes args (without the program name) and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := lookupCommand(args[0])
	if !ok {
		fmt.Fprintf(a.stderr, "bam: unknown command %q\n\n", args[0])
		a.usage()
		return 2
	}
	if err := a.setup(cmd.name); err != nil {
		fmt.Fprintf(a.stderr, "bam: %v\n", err)
		return 1
	}
	if cmd.name != "version" && cmd.name != "logs" {
		a.log.Step("Run %s", capitalize(cmd.name))
	}
	if err := cmd.run(a, ctx, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		a.log.Errorf("%v", err)
		a.log.Errorf("Aborting.")
		if book := a.log.Logbook(); book != nil {
			fmt.Fprintf(a.stderr, "Journal of run %s: %s\n", book.RunID(), book.Path())
		}
		return 1
	}
	return 0
}

// setup loads the tool settings and opens the run journal.
func (a *App) setup(name string) error {
	if a.log != nil {
		return nil
	}
	if name == "version" {
		a.log = logging.NewWithWriters(a.stdout, a.stderr, nil)
		return nil
	}
	if a.settings == nil {
		cfg, err := config.NewConfig()
		if err != nil {
			return err
		}
		a.settings = cfg
	}
	if name == "logs" {
		a.log = logging.NewWithWriters(a.stdout, a.stderr, nil)
		return nil
	}
	_ = logbook.Prune(a.settings.LogsDir(), keepJournals-1)
	book, err := logbook.Open(a.settings.LogsDir(), name)
	if err != nil {
		fmt.Fprintf(a.stderr, "bam: journal disabled: %v\n", err)
		book = nil
	} else {
		book.Info("bam %s · %s", a.version, name)
	}
	a.log = logging.NewWithWriters(a.stdout, a.stderr, book)
	return nil
}

func (a *App) usage() {
	fmt.Fprintln(a.stderr, "Usage: bam <command> [options]")
	fmt.Fprintln(a.stderr)
	fmt.Fprintln(a.stderr, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(a.stderr, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(a.stderr)
	fmt.Fprintln(a.stderr, "Run 'bam <command> -h' for the options of a command.")
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func (a *App) deps() project.Deps {
	return project.Deps{Loader: a.loader, Log: a.log, Version: a.version}
}

func (a *App) bootstrapper() *bootstrap.Bootstrapper {
	return bootstrap.New(bootstrap.Options{
		Runner:     a.runner,
		Git:        a.settings.Settings.Git,
		Deps:       a.deps(),
		Log:        a.log,
		Getwd:      a.getwd,
		Executable: a.executable,
	})
}

// loadConfig loads the project configuration once; later calls return the
// cached tree. Relative paths are resolved against the working directory.
func (a *App) loadConfig(ctx context.Context, path string) (*project.Node, error) {
	if a.node != nil {
		return a.node, nil
	}
	cwd, err := a.getwd()
	if err != nil {
		return nil, fmt.Errorf("cli: working directory: %w", err)
	}
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		path = project.DefaultPath(cwd, nil)
	case !filepath.IsAbs(path):
		path = filepath.Join(cwd, path)
	}
	node := project.New(project.FromPath(path), project.WithDeps(a.deps()))
	if err := node.Load(ctx); err != nil {
		return nil, err
	}
	a.node = node
	return node, nil
}

// parse loads the configuration named by args, lets it contribute flags and
// parses args against the complete flag set.
func (a *App) parse(ctx context.Context, cf *commandFlags, args []string) (*project.Node, project.Options, error) {
	node, err := a.loadConfig(ctx, configFlagValue(args))
	if err != nil {
		return nil, nil, err
	}
	if err := cf.registerConfigOptions(node); err != nil {
		return nil, nil, err
	}
	cf.fs.SetOutput(a.stderr)
	if err := cf.fs.Parse(args); err != nil {
		return nil, nil, err
	}
	opts, err := cf.options()
	if err != nil {
		return nil, nil, err
	}
	return node, opts, nil
}

func capitalize(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func sortedKeys(opts project.Options) []string {
	keys := make([]string, 0, len(opts))
	for key := range opts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
