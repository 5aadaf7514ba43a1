package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kingrea/bam/internal/project"
	"github.com/kingrea/bam/internal/runner"
)

// Option keys understood by SetupProject.
const (
	OptionSetup         = "setup"
	OptionSkipPost      = "skip-post"
	OptionInstallLinked = "install-linked"
)

// RenameProjectDir moves dir to the sibling directory named by the project's
// DirName. It returns the absolute project directory, renamed or not.
func RenameProjectDir(dir string, node *project.Node) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("bootstrap: resolve %s: %w", dir, err)
	}
	name, err := node.DirName()
	if err != nil {
		return "", err
	}
	if name == "" || name == filepath.Base(abs) {
		return abs, nil
	}
	if filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("bootstrap: dirName %q must be a single directory name", name)
	}
	target := filepath.Join(filepath.Dir(abs), name)
	if _, err := os.Lstat(target); err == nil {
		return "", NewDestinationExistsError(target)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("bootstrap: stat %s: %w", target, err)
	}
	if err := os.Rename(abs, target); err != nil {
		return "", fmt.Errorf("bootstrap: rename %s: %w", abs, err)
	}
	return target, nil
}

// FetchLinkedRepos installs every linked repository of node next to each
// other in baseDir. A failing repository is logged and leaves a nil entry;
// only an unloaded node is an error.
func (b *Bootstrapper) FetchLinkedRepos(ctx context.Context, node *project.Node, baseDir string) ([]*project.Node, error) {
	repos, err := node.LinkedRepos()
	if err != nil {
		return nil, err
	}
	linked := make([]*project.Node, len(repos))
	for idx, repo := range repos {
		if err := ctx.Err(); err != nil {
			return linked, err
		}
		b.log.Printf("Fetching linked repository %s", repo)
		installed, err := b.InstallProject(ctx, repo, baseDir, true, true)
		if err != nil {
			b.log.Warnf("Linked repository %s failed: %v", repo, err)
			continue
		}
		linked[idx] = installed
	}
	return linked, nil
}

// InstallProject clones repo into parentDir, installs its node dependencies,
// loads its configuration and sets it up. A repository without configuration
// is accepted unless required. The returned node is nil in that case.
func (b *Bootstrapper) InstallProject(ctx context.Context, repo, parentDir string, required, skipPost bool) (*project.Node, error) {
	return b.InstallProjectInto(ctx, repo, "", parentDir, required, skipPost)
}

// InstallProjectInto is InstallProject with an explicit clone directory.
func (b *Bootstrapper) InstallProjectInto(ctx context.Context, repo, dir, parentDir string, required, skipPost bool) (*project.Node, error) {
	dir, err := b.CloneRepository(ctx, repo, dir, parentDir)
	if err != nil {
		return nil, err
	}
	if err := b.InstallNodeDependencies(ctx, dir); err != nil {
		return nil, err
	}
	node, err := b.loadProject(ctx, dir)
	if err != nil {
		if !required && project.HasCode(err, project.ErrCodeConfigNotFound) {
			b.log.Printf("No bam configuration in %s, skipping setup", dir)
			return nil, nil
		}
		return nil, err
	}
	renamed, err := RenameProjectDir(dir, node)
	if err != nil {
		return nil, err
	}
	if renamed != dir {
		if node, err = b.loadProject(ctx, renamed); err != nil {
			return nil, err
		}
	}
	opts := project.Options{OptionSetup: true, OptionSkipPost: skipPost}
	if err := b.SetupProject(ctx, renamed, node, opts); err != nil {
		return nil, err
	}
	return node, nil
}

// SetupProject finishes the installation of the project in dir. When dir is
// not the working directory the executable re-runs itself there so hooks see
// the project as their working directory. Otherwise the directory is renamed,
// linked repositories are fetched, the install lifecycle runs without its post
// pass, and finally the post pass runs for each linked project and then for
// the project itself.
func (b *Bootstrapper) SetupProject(ctx context.Context, dir string, node *project.Node, opts project.Options) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("bootstrap: resolve %s: %w", dir, err)
	}
	cwd, err := b.getwd()
	if err != nil {
		return fmt.Errorf("bootstrap: working directory: %w", err)
	}
	if !samePath(abs, cwd) {
		return b.setupElsewhere(ctx, abs, opts)
	}

	renamed, err := RenameProjectDir(abs, node)
	if err != nil {
		return err
	}
	if renamed != abs {
		b.log.Printf("Renamed %s to %s", abs, renamed)
		if node, err = b.relocate(ctx, node, renamed); err != nil {
			return err
		}
	}

	var linked []*project.Node
	if opts.BoolOr(OptionInstallLinked, true) {
		if linked, err = b.FetchLinkedRepos(ctx, node, filepath.Dir(renamed)); err != nil {
			return err
		}
	}
	if err := node.Install(ctx, opts, project.LaunchOptions{SkipPost: true}); err != nil {
		return err
	}
	if opts.Bool(OptionSkipPost) {
		return nil
	}
	for _, linkedNode := range linked {
		if linkedNode == nil {
			continue
		}
		if err := linkedNode.RunPostMethod(ctx, project.MethodInstall, opts); err != nil {
			return err
		}
	}
	return node.RunPostMethod(ctx, project.MethodInstall, opts)
}

func (b *Bootstrapper) setupElsewhere(ctx context.Context, dir string, opts project.Options) error {
	exe, err := b.executable()
	if err != nil {
		return fmt.Errorf("bootstrap: locate executable: %w", err)
	}
	args := []string{"install", "--setup"}
	if opts.Bool(OptionSkipPost) {
		args = append(args, "--skip-post")
	}
	if !opts.BoolOr(OptionInstallLinked, true) {
		args = append(args, "--install-linked=false")
	}
	b.log.Printf("Setting up %s", dir)
	return b.runner.Run(ctx, exe, args, runner.RunOptions{Dir: dir})
}

func (b *Bootstrapper) loadProject(ctx context.Context, dir string) (*project.Node, error) {
	path := project.DefaultPath(dir, b.deps.Stat)
	node := project.New(project.FromPath(path), project.WithDeps(b.deps))
	if err := node.Load(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// relocate reloads a file-backed node after its directory moved.
func (b *Bootstrapper) relocate(ctx context.Context, node *project.Node, dir string) (*project.Node, error) {
	if node.Path() == "" {
		return node, nil
	}
	moved := project.New(project.FromPath(filepath.Join(dir, filepath.Base(node.Path()))), project.WithDeps(b.deps))
	if err := moved.Load(ctx); err != nil {
		return nil, err
	}
	return moved, nil
}

func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}
