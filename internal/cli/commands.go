package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/kingrea/bam/internal/bootstrap"
	"github.com/kingrea/bam/internal/logbook"
	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/tui"
	"github.com/kingrea/bam/plugins"
	"github.com/spf13/cast"
	"golang.org/x/mod/semver"
)

// Environments accepted by build and deploy.
var environments = []string{"prod", "staging"}

func (a *App) install(ctx context.Context, args []string) error {
	cf := newCommandFlags("install")
	var setup, skipPost, installLinked bool
	cf.boolVar(&setup, bootstrap.OptionSetup, "s", false, "Do all setup actions (rename folder, fetch linked repositories, ...)")
	cf.fs.BoolVar(&skipPost, bootstrap.OptionSkipPost, false, "Skip the postInstall pass")
	cf.fs.BoolVar(&installLinked, bootstrap.OptionInstallLinked, true, "Install linked repositories with --setup")

	node, opts, err := a.parse(ctx, cf, args)
	if err != nil {
		return err
	}
	a.journalOptions(opts)
	if setup {
		cwd, err := a.getwd()
		if err != nil {
			return fmt.Errorf("cli: working directory: %w", err)
		}
		return a.bootstrapper().SetupProject(ctx, cwd, node, opts)
	}
	return node.Install(ctx, opts, project.LaunchOptions{SkipPost: skipPost})
}

func (a *App) build(ctx context.Context, args []string) error {
	cf := newCommandFlags("build")
	var env string
	cf.stringVar(&env, "env", "e", a.settings.Settings.DefaultEnv, "Environment [prod|staging]")

	node, opts, err := a.parse(ctx, cf, args)
	if err != nil {
		return err
	}
	if opts["env"], err = normalizeEnv(env); err != nil {
		return err
	}
	a.journalOptions(opts)
	return node.Build(ctx, opts)
}

func (a *App) deploy(ctx context.Context, args []string) error {
	cf := newCommandFlags("deploy")
	var env string
	var build bool
	cf.stringVar(&env, "env", "e", a.settings.Settings.DefaultEnv, "Environment [prod|staging]")
	cf.boolVar(&build, "build", "b", false, "Build before deploying")

	node, opts, err := a.parse(ctx, cf, args)
	if err != nil {
		return err
	}
	if opts["env"], err = normalizeEnv(env); err != nil {
		return err
	}
	a.journalOptions(opts)
	if build {
		if err := node.Build(ctx, opts); err != nil {
			return err
		}
	}
	return node.Deploy(ctx, opts)
}

func (a *App) clone(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bam clone", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	required := fs.Bool("required", false, "Fail when the repository has no bam configuration")
	skipPost := fs.Bool(bootstrap.OptionSkipPost, false, "Skip the postInstall pass")
	folder := fs.String("folder", "", "Save the default git folder used for bare repository names")
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: bam clone [options] <repository> [directory]")
		fs.PrintDefaults()
	}
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(positional) == 0 || len(positional) > 2 {
		fs.Usage()
		return fmt.Errorf("cli: clone expects a repository and an optional directory")
	}
	repo, dir := positional[0], ""
	if len(positional) == 2 {
		dir = positional[1]
	}
	if *folder != "" {
		if err := a.settings.SetGitFolder(*folder); err != nil {
			return err
		}
		a.log.Printf("Default git folder set to %s", a.settings.Settings.Git.Folder)
	}
	cwd, err := a.getwd()
	if err != nil {
		return fmt.Errorf("cli: working directory: %w", err)
	}
	node, err := a.bootstrapper().InstallProjectInto(ctx, repo, dir, cwd, *required, *skipPost)
	if err != nil {
		return err
	}
	if node == nil {
		a.log.Printf("%s has no bam configuration; cloned only", repo)
	}
	return nil
}

func (a *App) initConfig(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bam init", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	format := fs.String("format", plugins.FormatGo, "Configuration format [go|yaml|hcl]")
	dirName := fs.String("dir-name", "", "Directory name the project is renamed to on setup")
	linked := fs.String("linked", "", "Comma separated linked repositories")
	scriptVersion := fs.String("script-version", defaultScriptVersion(a.version), "Minimum bam version required by the configuration")
	force := fs.Bool("force", false, "Overwrite an existing configuration")
	yes := fs.Bool("yes", false, "Do not prompt; use the flag values")
	fs.BoolVar(yes, "y", false, "Shorthand for --yes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	answers := tui.InitAnswers{
		Format:      *format,
		DirName:     strings.TrimSpace(*dirName),
		LinkedRepos: tui.SplitRepos(*linked),
	}
	if !*yes && a.isTerminal() {
		var err error
		if answers, err = tui.RunInitWizard(answers, a.stdin, a.stdout); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cwd, err := a.getwd()
	if err != nil {
		return fmt.Errorf("cli: working directory: %w", err)
	}
	path, err := plugins.WriteTemplate(cwd, answers.Format, plugins.TemplateData{
		ScriptVersion: *scriptVersion,
		DirName:       answers.DirName,
		LinkedRepos:   answers.LinkedRepos,
	}, *force)
	if err != nil {
		return err
	}
	a.log.Printf("Wrote %s", path)
	return nil
}

func (a *App) printLogs(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("bam logs", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	lines := fs.Int("n", 20, "Number of journal lines to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := a.settings.LogsDir()
	path, err := logbook.Latest(dir)
	if err != nil {
		return err
	}
	if path == "" {
		a.log.Printf("No journal in %s", dir)
		return nil
	}
	book, err := logbook.New(path)
	if err != nil {
		return fmt.Errorf("cli: open journal: %w", err)
	}
	tail, total := book.Tail(*lines)
	fmt.Fprintf(a.stdout, "%s (last %d of %d lines)\n", path, len(tail), total)
	for _, line := range tail {
		fmt.Fprintln(a.stdout, line)
	}
	return nil
}

func (a *App) printVersion(_ context.Context, _ []string) error {
	fmt.Fprintln(a.stdout, a.version)
	return nil
}

func (a *App) journalOptions(opts project.Options) {
	parts := make([]string, 0, len(opts))
	for _, key := range sortedKeys(opts) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, cast.ToString(opts[key])))
	}
	a.log.Logbook().Info("options: %s", strings.Join(parts, " "))
}

func normalizeEnv(env string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(env))
	for _, candidate := range environments {
		if normalized == candidate {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("cli: invalid environment %q (want %s)", env, strings.Join(environments, " or "))
}

// defaultScriptVersion is the running version when it is a release version.
func defaultScriptVersion(version string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if !semver.IsValid("v" + trimmed) {
		return ""
	}
	return trimmed
}

// parseInterleaved allows flags after positional arguments.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
