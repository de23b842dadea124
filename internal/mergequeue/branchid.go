package mergequeue

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/logfields"
	"github.com/simplesurance/automerge/internal/pullrequest"
)

// BranchID identifies a github branch uniquely
type BranchID struct {
	RepositoryOwner string
	Repository      string
	Branch          string
}

// NewBranchID returns a BranchID, all parameters must be non-empty.
func NewBranchID(owner, repo, branch string) (*BranchID, error) {
	if owner == "" {
		return nil, errors.New("repositoryOwner is empty")
	}

	if repo == "" {
		return nil, errors.New("repository is empty")
	}

	if branch == "" {
		return nil, errors.New("branch is empty")
	}

	return &BranchID{
		RepositoryOwner: owner,
		Repository:      repo,
		Branch:          branch,
	}, nil
}

// BaseBranchID returns the BranchID of the base branch of a pull request.
func BaseBranchID(pr *pullrequest.Snapshot) (*BranchID, error) {
	return NewBranchID(pr.Owner, pr.Repository, pr.BaseRef)
}

func (b *BranchID) String() string {
	return fmt.Sprintf("%s/%s branch: %s", b.RepositoryOwner, b.Repository, b.Branch)
}

// Key returns a string representation of the branch in the format
// OWNER/REPO:BRANCH.
// Git forbids colons in branch names, therefore the format is unambiguous.
func (b *BranchID) Key() string {
	return b.RepositoryOwner + "/" + b.Repository + ":" + b.Branch
}

// ParseBranchKey parses a string that was created by BranchID.Key().
func ParseBranchKey(key string) (*BranchID, error) {
	repo, branch, found := strings.Cut(key, ":")
	if !found {
		return nil, fmt.Errorf("invalid branch key %q, missing ':' separator", key)
	}

	owner, repoName, found := strings.Cut(repo, "/")
	if !found {
		return nil, fmt.Errorf("invalid branch key %q, missing '/' separator", key)
	}

	return NewBranchID(owner, repoName, branch)
}

// Logfields returns log fields identifying the branch.
func (b *BranchID) Logfields() []zap.Field {
	return []zap.Field{
		logfields.Repository(b.Repository),
		logfields.RepositoryOwner(b.RepositoryOwner),
		logfields.BaseBranch(b.Branch),
	}
}
