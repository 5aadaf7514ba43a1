package bootstrap

import (
	"regexp"
	"strings"

	"github.com/kingrea/bam/internal/config"
)

var (
	repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	schemePattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// FullGitURL expands a repository reference into something git can clone.
//
//	ssh://host/path/repo.git, user@host:path/repo -> unchanged
//	owner/repo[.git]                              -> <base>owner/repo.git
//	repo[.git]                                    -> <base><folder>/repo.git
func FullGitURL(repo string, git config.GitSettings) (string, error) {
	trimmed := strings.TrimSpace(repo)
	if _, err := RepositoryName(trimmed); err != nil {
		return "", err
	}
	if isRemoteURL(trimmed) {
		return trimmed, nil
	}
	base := git.BaseURL
	if base == "" {
		base = config.DefaultSettings().Git.BaseURL
	}
	path := strings.Trim(trimmed, "/")
	if !strings.HasSuffix(path, ".git") {
		path += ".git"
	}
	if strings.Contains(path, "/") {
		return base + path, nil
	}
	folder := strings.Trim(git.Folder, "/")
	if folder == "" {
		return "", NewInvalidRepositoryError(repo).
			WithContext("reason", "no default git folder configured for a bare repository name (set one with bam clone --folder)")
	}
	return base + folder + "/" + path, nil
}

// RepositoryName returns the directory git would clone repo into.
func RepositoryName(repo string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(repo), "/")
	if idx := strings.LastIndexAny(trimmed, "/:"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	name := strings.TrimSuffix(trimmed, ".git")
	if name == "" || name == "." || name == ".." || !repoNamePattern.MatchString(name) {
		return "", NewInvalidRepositoryError(repo)
	}
	return name, nil
}

// isRemoteURL reports URLs with a scheme and scp-like host:path references.
func isRemoteURL(repo string) bool {
	if schemePattern.MatchString(repo) {
		return true
	}
	colon := strings.Index(repo, ":")
	if colon <= 0 {
		return false
	}
	slash := strings.Index(repo, "/")
	return slash < 0 || colon < slash
}
