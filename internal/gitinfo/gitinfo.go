// Package gitinfo stamps build reports with the monorepo revision.
package gitinfo

import (
	"log/slog"

	git "github.com/go-git/go-git/v5"
)

// HeadRevision returns the repository HEAD hash for the tree containing dir,
// or "" when dir is not inside a git repository. Best effort: documentation
// builds must work from exported trees too, so failures only log at debug.
func HeadRevision(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		slog.Debug("No git repository detected for revision stamp", "dir", dir, "error", err)
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		slog.Debug("Failed to resolve repository HEAD", "dir", dir, "error", err)
		return ""
	}
	return head.Hash().String()
}
