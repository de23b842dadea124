// Package pullrequest provides a read-only view of a pull request and
// exposes its fields as a flat attribute namespace.
package pullrequest

import (
	"sort"

	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/logfields"
)

// State is the lifecycle state of a pull request.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
	StateMerged State = "merged"
)

// CheckState is the result of a status check or check run.
type CheckState string

const (
	CheckStateSuccess CheckState = "success"
	CheckStateFailure CheckState = "failure"
	CheckStatePending CheckState = "pending"
	// CheckStateNone is the state of a check that is required but did
	// not report a result yet.
	CheckStateNone CheckState = ""
)

// MergeableState values as reported by GitHub.
const (
	MergeableStateBehind  = "behind"
	MergeableStateBlocked = "blocked"
	MergeableStateClean   = "clean"
	MergeableStateDirty   = "dirty"
	MergeableStateUnknown = "unknown"
	MergeableStateDraft   = "draft"
)

// Snapshot is the state of a pull request at a point in time.
// It is not modified after it was created, a refresh creates a new
// Snapshot.
type Snapshot struct {
	Owner      string
	Repository string
	Number     int
	NodeID     string

	Title  string
	Body   string
	Author string

	HeadRef          string
	HeadSHA          string
	HeadRepoFullName string

	BaseRef          string
	BaseSHA          string
	BaseRepoFullName string

	State          State
	Draft          bool
	Merged         bool
	MergedBy       string
	MergeCommitSHA string

	// Mergeable is nil when GitHub did not compute it yet.
	Mergeable           *bool
	Rebaseable          bool
	MergeableState      string
	MaintainerCanModify bool

	// Behind is true when the base branch contains commits that are
	// missing in the head branch.
	Behind bool

	Labels    []string
	Assignees []string
	Milestone string

	Checks map[string]CheckState
}

// BaseIsModifiable returns true if the head branch of the pull request can
// be updated with changes from its base branch.
func (s *Snapshot) BaseIsModifiable() bool {
	return s.MaintainerCanModify || s.HeadRepoFullName == s.BaseRepoFullName
}

// IsClosed returns true if the pull request was closed or merged.
func (s *Snapshot) IsClosed() bool {
	return s.State == StateClosed || s.State == StateMerged
}

// ChecksWithState returns the sorted names of all checks in the given state.
func (s *Snapshot) ChecksWithState(state CheckState) []string {
	var result []string

	for name, st := range s.Checks {
		if st == state {
			result = append(result, name)
		}
	}

	sort.Strings(result)

	return result
}

// LogFields returns log fields identifying the pull request.
func (s *Snapshot) LogFields() []zap.Field {
	return []zap.Field{
		logfields.RepositoryOwner(s.Owner),
		logfields.Repository(s.Repository),
		logfields.PullRequest(s.Number),
		logfields.BaseBranch(s.BaseRef),
		logfields.Branch(s.HeadRef),
		logfields.Commit(s.HeadSHA),
	}
}
