package githubclt

import (
	"errors"
	"fmt"
)

var (
	ErrPullRequestIsClosed = errors.New("pull request is closed")
	ErrMergeConflict       = errors.New("merge conflict")
)

// MergeMethod is the method that is used to merge a pull request.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodRebase MergeMethod = "rebase"
	MergeMethodSquash MergeMethod = "squash"
)

// UpdateMethod is the method that is used to update a pull request branch
// with the changes of its base branch.
type UpdateMethod string

const (
	UpdateMethodMerge  UpdateMethod = "merge"
	UpdateMethodRebase UpdateMethod = "rebase"
)

// MergeOptions are the parameters of a merge operation.
type MergeOptions struct {
	// SHA is the expected head commit of the pull request, the merge
	// fails if the head differs.
	SHA    string
	Method MergeMethod
	// CommitTitle and CommitMessage are optional, when empty GitHub
	// generates them.
	CommitTitle   string
	CommitMessage string
}

// UpdateBranchResult describes the result of an UpdateBranch operation.
type UpdateBranchResult struct {
	// Changed is true when the branch was or will be updated.
	Changed bool
	// Scheduled is true when GitHub accepted the update and performs it
	// asynchronously.
	Scheduled bool
	// HeadSHA is the head commit of the pull request before the update.
	HeadSHA string
}

// ClientError is returned when GitHub rejected a request with a 4xx status
// code.
type ClientError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("github returned status code %d: %s", e.StatusCode, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}
