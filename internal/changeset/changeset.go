// Package changeset discovers the files an autonomous cycle touched, plus
// the most recent plan document.
package changeset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ErrNotGitRepo indicates the directory is not a Git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// DefaultExtensions is the set of file suffixes the creed applies to.
var DefaultExtensions = []string{".py", ".pyx", ".pyi"}

// Changed returns the paths (relative to repoPath, joined for reading) of
// files that are modified, added, or untracked in the worktree, filtered to
// the given extensions and sorted for deterministic audits. Deleted files
// are skipped: there is nothing left to audit.
func Changed(repoPath string, extensions []string) ([]string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotGitRepo, repoPath)
		}
		return nil, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}

	var files []string
	for path, st := range status {
		if st.Worktree == git.Deleted || st.Staging == git.Deleted {
			continue
		}
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		if !hasExtension(path, extensions) {
			continue
		}
		files = append(files, filepath.Join(repoPath, path))
	}

	sort.Strings(files)
	return files, nil
}

// LatestScroll returns the most recently modified markdown document under
// dir, or "" when the directory holds none.
func LatestScroll(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading scroll dir %s: %w", dir, err)
	}

	var latest string
	var latestMod int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); latest == "" || mod > latestMod {
			latest = filepath.Join(dir, entry.Name())
			latestMod = mod
		}
	}

	return latest, nil
}

func hasExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	for _, ext := range extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
