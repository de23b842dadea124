package mergequeue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/githubclt"
	"github.com/simplesurance/automerge/internal/logfields"
)

// Entry is a pull request that is waiting in the queue to be updated with
// its base branch.
type Entry struct {
	Branch     BranchID
	PullNumber int
	SyncMethod githubclt.UpdateMethod
	EnqueuedAt time.Time
	// ActiveSince is the time when the entry was claimed for being
	// synchronized, it is nil if it is not claimed.
	ActiveSince *time.Time
}

// Logfields returns log fields identifying the entry.
func (e *Entry) Logfields() []zap.Field {
	return append(
		e.Branch.Logfields(),
		logfields.PullRequest(e.PullNumber),
		logfields.SyncMethod(string(e.SyncMethod)),
	)
}

// Store persists queue entries.
// Entries of the same branch are ordered by their EnqueuedAt timestamp.
// Implementations must guarantee that at most one entry per branch is
// active at a time, also when multiple processes access the store
// concurrently.
type Store interface {
	// Enqueue appends an entry to the queue of its branch.
	// If an entry for the pull request exists already, only its
	// SyncMethod is updated, it keeps its position.
	Enqueue(ctx context.Context, e *Entry) (added bool, err error)
	// Dequeue removes the entry of the pull request.
	// If it does not exist, removed is false and no error is returned.
	Dequeue(ctx context.Context, branch *BranchID, pullNumber int) (removed bool, err error)
	// Entries returns the entries of a branch in queue order.
	Entries(ctx context.Context, branch *BranchID) ([]*Entry, error)
	// Branches returns all branches that have queued entries.
	Branches(ctx context.Context) ([]*BranchID, error)
	// Claim marks the first entry of the branch queue as active and
	// returns it.
	// If the queue is empty or an entry of the branch is active already,
	// nil is returned. Claims that are older than ttl are treated as
	// expired.
	Claim(ctx context.Context, branch *BranchID, ttl time.Duration) (*Entry, error)
	// Release clears the active mark of the entry.
	Release(ctx context.Context, branch *BranchID, pullNumber int) error
}
