package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kingrea/bam/internal/runner"
)

// CloneRepository clones repo recursively into dir, or into the repository
// name when dir is empty. Relative destinations are resolved against parent.
// Failed attempts are retried with the configured backoff; the absolute
// destination is returned.
func (b *Bootstrapper) CloneRepository(ctx context.Context, repo, dir, parent string) (string, error) {
	url, err := FullGitURL(repo, b.git)
	if err != nil {
		return "", err
	}
	if dir == "" {
		if dir, err = RepositoryName(repo); err != nil {
			return "", err
		}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(parent, dir)
	}
	dest, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("bootstrap: resolve %s: %w", dir, err)
	}
	if _, err := os.Stat(dest); err == nil {
		return "", NewDestinationExistsError(dest)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("bootstrap: stat %s: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("bootstrap: ensure %s: %w", filepath.Dir(dest), err)
	}

	b.log.Printf("Cloning %s into %s", url, dest)
	attempt := func() error {
		err := b.runner.Run(ctx, "git", []string{"clone", "--recursive", url, dest}, runner.RunOptions{Dir: filepath.Dir(dest)})
		if err == nil {
			return nil
		}
		_ = os.RemoveAll(dest)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	retries := b.git.CloneRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b.newBackOff(), uint64(retries)), ctx)
	notify := func(err error, wait time.Duration) {
		b.log.Warnf("git clone %s failed, retrying in %s: %v", url, wait.Round(time.Millisecond), err)
	}
	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		return "", err
	}
	return dest, nil
}

// InstallNodeDependencies runs npm install in dir when it holds a package.json.
func (b *Bootstrapper) InstallNodeDependencies(ctx context.Context, dir string) error {
	info, err := os.Stat(filepath.Join(dir, "package.json"))
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	b.log.Printf("Installing node dependencies in %s", dir)
	return b.runner.Run(ctx, "npm", []string{"install"}, runner.RunOptions{Dir: dir})
}
