package history

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

// GitRevisions resolves the checked-out commit of a project directory.
type GitRevisions struct{}

// NewGitRevisions constructs a GitRevisions resolver.
func NewGitRevisions() *GitRevisions {
	return &GitRevisions{}
}

// Resolve implements ports.RevisionResolver. Parent directories are searched
// for the repository, so projects nested inside a checkout resolve too.
func (GitRevisions) Resolve(ctx context.Context, projectDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, err := git.PlainOpenWithOptions(projectDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", nil
		}
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		// unborn branch: no commits yet
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", err
	}
	return head.Hash().String(), nil
}

var _ ports.RevisionResolver = GitRevisions{}
