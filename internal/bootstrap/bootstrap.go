// Package bootstrap turns a repository reference into a ready-to-use project:
// clone, install dependencies, rename the checkout, fetch linked repositories
// and run the install lifecycle.
package bootstrap

import (
	"os"
	"time"

	"github.com/agilira/go-errors"
	"github.com/cenkalti/backoff/v4"
	"github.com/kingrea/bam/internal/config"
	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/runner"
)

// Error codes raised while bootstrapping.
const (
	ErrCodeInvalidRepository = "BAM_1101"
	ErrCodeDestinationExists = "BAM_1102"
)

// Logger receives progress and warning lines.
type Logger interface {
	Printf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Options wires a Bootstrapper. Zero fields fall back to the operating system.
type Options struct {
	Runner runner.Runner
	Git    config.GitSettings
	// Deps is used for every configuration the bootstrapper loads.
	Deps project.Deps
	Log  Logger
	// Getwd and Executable locate the running process; SetupProject re-runs
	// the executable when the project is not the working directory.
	Getwd      func() (string, error)
	Executable func() (string, error)
	// NewBackOff returns the retry policy for git clone.
	NewBackOff func() backoff.BackOff
}

// Bootstrapper installs projects and their linked repositories.
type Bootstrapper struct {
	runner     runner.Runner
	git        config.GitSettings
	deps       project.Deps
	log        Logger
	getwd      func() (string, error)
	executable func() (string, error)
	newBackOff func() backoff.BackOff
}

// New returns a Bootstrapper for opts.
func New(opts Options) *Bootstrapper {
	b := &Bootstrapper{
		runner:     opts.Runner,
		git:        opts.Git,
		deps:       opts.Deps,
		log:        opts.Log,
		getwd:      opts.Getwd,
		executable: opts.Executable,
		newBackOff: opts.NewBackOff,
	}
	if b.runner == nil {
		b.runner = runner.NewExec()
	}
	if b.log == nil {
		b.log = nopLogger{}
	}
	if b.deps.Log == nil {
		b.deps.Log = b.log
	}
	if b.getwd == nil {
		b.getwd = os.Getwd
	}
	if b.executable == nil {
		b.executable = os.Executable
	}
	if b.newBackOff == nil {
		b.newBackOff = defaultBackOff
	}
	if b.git.BaseURL == "" {
		b.git.BaseURL = config.DefaultSettings().Git.BaseURL
	}
	return b
}

func defaultBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Minute
	return policy
}

// NewInvalidRepositoryError reports a reference no repository name can be read from.
func NewInvalidRepositoryError(repo string) *errors.Error {
	return errors.New(ErrCodeInvalidRepository, "Invalid repository name "+repo).
		WithUserMessage("The repository reference is not valid.").
		WithContext("repository", repo).
		WithSeverity("error")
}

// NewDestinationExistsError reports a clone or rename target that is already taken.
func NewDestinationExistsError(path string) *errors.Error {
	return errors.New(ErrCodeDestinationExists, "Destination "+path+" already exists").
		WithUserMessage("The destination directory already exists.").
		WithContext("path", path).
		WithSeverity("error")
}
