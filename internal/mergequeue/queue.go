// Package mergequeue provides a persisted per base-branch FIFO queue of pull
// requests that must be updated with their base branch before they can be
// merged, and a worker that performs the updates one pull request per branch
// at a time.
package mergequeue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/githubclt"
	"github.com/simplesurance/automerge/internal/logfields"
	"github.com/simplesurance/automerge/internal/pullrequest"
)

const loggerName = "merge_queue"

// Queue provides idempotent enqueue and dequeue operations on a Store.
type Queue struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewQueue(store Store) *Queue {
	return &Queue{
		store:  store,
		logger: zap.L().Named(loggerName),
		now:    time.Now,
	}
}

// Enqueue adds the pull request to the queue of the branch.
// If it is queued already, its sync method is updated.
func (q *Queue) Enqueue(ctx context.Context, branch *BranchID, pullNumber int, method githubclt.UpdateMethod) error {
	logger := q.logger.With(branch.Logfields()...).With(
		logfields.PullRequest(pullNumber),
		logfields.SyncMethod(string(method)),
	)

	added, err := q.store.Enqueue(ctx, &Entry{
		Branch:     *branch,
		PullNumber: pullNumber,
		SyncMethod: method,
		EnqueuedAt: q.now(),
	})
	if err != nil {
		return fmt.Errorf("enqueuing pull request %d failed: %w", pullNumber, err)
	}

	if added {
		metrics.EnqueueOpsInc(branch)
		logger.Info("pull request enqueued", logEventEnqueued)
		return nil
	}

	logger.Debug("pull request is already enqueued, sync method updated", logEventEnqueued)

	return nil
}

// Dequeue removes the pull request from the queue of the branch.
// Dequeuing a pull request that is not queued is a no-op.
func (q *Queue) Dequeue(ctx context.Context, branch *BranchID, pullNumber int) error {
	removed, err := q.store.Dequeue(ctx, branch, pullNumber)
	if err != nil {
		return fmt.Errorf("dequeuing pull request %d failed: %w", pullNumber, err)
	}

	if removed {
		metrics.DequeueOpsInc(branch)
		q.logger.Info(
			"pull request dequeued",
			append(branch.Logfields(), logfields.PullRequest(pullNumber), logEventDequeued)...,
		)
	}

	return nil
}

// Entries returns the queued pull requests of the branch in queue order.
func (q *Queue) Entries(ctx context.Context, branch *BranchID) ([]*Entry, error) {
	return q.store.Entries(ctx, branch)
}

// AddPull enqueues a pull request for its base branch.
func (q *Queue) AddPull(ctx context.Context, pr *pullrequest.Snapshot, method githubclt.UpdateMethod) error {
	branch, err := BaseBranchID(pr)
	if err != nil {
		return err
	}

	return q.Enqueue(ctx, branch, pr.Number, method)
}

// RemovePull dequeues a pull request from its base branch queue.
func (q *Queue) RemovePull(ctx context.Context, pr *pullrequest.Snapshot) error {
	branch, err := BaseBranchID(pr)
	if err != nil {
		return err
	}

	return q.Dequeue(ctx, branch, pr.Number)
}
