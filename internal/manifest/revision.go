package manifest

import (
	"github.com/go-git/go-git/v5"
)

// DetectSourceRevision returns the git HEAD hash for dir, walking up to the
// enclosing repository. Targets outside any repository yield "".
func DetectSourceRevision(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
