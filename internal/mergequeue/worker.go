package mergequeue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/amerr"
	"github.com/simplesurance/automerge/internal/githubclt"
	"github.com/simplesurance/automerge/internal/logfields"
	"github.com/simplesurance/automerge/internal/pullrequest"
	"github.com/simplesurance/automerge/internal/retry"
	"github.com/simplesurance/automerge/internal/routines"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . GithubClient

// GithubClient defines the methods of a GithubAPI Client that are used by
// the Worker.
type GithubClient interface {
	PullRequest(ctx context.Context, owner, repo string, number int) (*pullrequest.Snapshot, error)
	UpdateBranch(ctx context.Context, owner, repo string, number int, method githubclt.UpdateMethod) (*githubclt.UpdateBranchResult, error)
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
}

// Retryer executes a function repeatedly until it succeeds or a permanent
// error happens.
type Retryer interface {
	Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error
}

const (
	DefaultWorkerInterval    = 30 * time.Second
	DefaultClaimTTL          = 30 * time.Minute
	DefaultWorkerConcurrency = 4

	operationTimeout = 10 * time.Minute
	commentTimeout   = 5 * time.Minute
)

// Worker processes the queues of all branches periodically.
// Per branch the first entry is claimed and its pull request branch is
// updated with its base branch. The claim is kept until the pull request is
// removed from the queue, which happens when it got merged, closed,
// retargeted or when updating it failed permanently.
// When a claim is older than the claim TTL it expires and the head of the
// queue is processed again.
type Worker struct {
	queue   *Queue
	store   Store
	clt     GithubClient
	retryer Retryer
	logger  *zap.Logger

	interval    time.Duration
	claimTTL    time.Duration
	concurrency int

	ctx      context.Context
	cancelFn context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type WorkerOption func(*Worker)

// WithInterval sets the interval in which all queues are processed.
func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.interval = d
	}
}

// WithClaimTTL sets the duration after that a claim expires.
func WithClaimTTL(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.claimTTL = d
	}
}

// WithConcurrency sets the number of branches that are processed in
// parallel.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		w.concurrency = n
	}
}

func NewWorker(queue *Queue, clt GithubClient, retryer Retryer, opts ...WorkerOption) *Worker {
	ctx, cancelFn := context.WithCancel(context.Background())

	w := Worker{
		queue:       queue,
		store:       queue.store,
		clt:         clt,
		retryer:     retryer,
		logger:      zap.L().Named(loggerName).Named("worker"),
		interval:    DefaultWorkerInterval,
		claimTTL:    DefaultClaimTTL,
		concurrency: DefaultWorkerConcurrency,
		ctx:         ctx,
		cancelFn:    cancelFn,
	}

	for _, o := range opts {
		o(&w)
	}

	return &w
}

// Start starts processing the queues periodically in a go-routine.
func (w *Worker) Start() {
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		w.loop()
	}()
}

// Stop terminates the worker and waits until running operations were
// cancelled.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Debug("worker terminating")
		w.cancelFn()
		w.wg.Wait()
		w.logger.Debug("worker terminated")
	})
}

func (w *Worker) loop() {
	w.logger.Info(
		"merge queue worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("claim_ttl", w.claimTTL),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(w.ctx); err != nil && w.ctx.Err() == nil {
			w.logger.Error(
				"processing merge queues failed",
				logfields.Event("merge_queue_processing_failed"),
				zap.Error(err),
			)
		}

		select {
		case <-w.ctx.Done():
			w.logger.Info("merge queue worker terminated")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes the queues of all branches once and returns when all
// were processed.
func (w *Worker) RunOnce(ctx context.Context) error {
	branches, err := w.store.Branches(ctx)
	if err != nil {
		return fmt.Errorf("retrieving branches failed: %w", err)
	}

	pool := routines.NewPool(w.concurrency)
	for _, b := range branches {
		branch := b
		pool.Queue(func() {
			w.processBranch(ctx, branch)
		})
	}
	pool.Wait()

	return nil
}

func (w *Worker) processBranch(ctx context.Context, branch *BranchID) {
	logger := w.logger.With(branch.Logfields()...)

	entry, err := w.store.Claim(ctx, branch, w.claimTTL)
	if err != nil {
		logger.Error(
			"claiming first queue entry failed",
			logfields.Event("claiming_queue_entry_failed"),
			zap.Error(err),
		)
		return
	}

	if entry == nil {
		logger.Debug(
			"queue is empty or first entry is already being processed",
			logEventUpdateSkipped,
		)
		return
	}

	logger = logger.With(entry.Logfields()...)
	logger.Debug("queue entry claimed", logEventClaimed)

	result := w.processEntry(ctx, logger, entry)
	metrics.WorkerResultInc(branch, result)
}

func (w *Worker) release(logger *zap.Logger, entry *Entry) {
	// the ctx of the operation might be cancelled already
	ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
	defer cancelFn()

	if err := w.store.Release(ctx, &entry.Branch, entry.PullNumber); err != nil {
		logger.Error(
			"releasing claim of queue entry failed",
			logfields.Event("releasing_claim_failed"),
			zap.Error(err),
		)
		return
	}

	logger.Debug("claim released", logEventReleased)
}

func (w *Worker) dequeue(ctx context.Context, logger *zap.Logger, entry *Entry, reason zap.Field) {
	if err := w.queue.Dequeue(ctx, &entry.Branch, entry.PullNumber); err != nil {
		logger.Error(
			"removing pull request from queue failed",
			logfields.Event("dequeue_failed"),
			reason,
			zap.Error(err),
		)
		return
	}

	logger.Info("pull request removed from queue", logEventDequeued, reason)
}

func (w *Worker) dequeueAndComment(ctx context.Context, logger *zap.Logger, entry *Entry, reason zap.Field, msg string) {
	w.dequeue(ctx, logger, entry, reason)

	ctx, cancelFn := context.WithTimeout(context.Background(), commentTimeout)
	defer cancelFn()

	err := w.clt.CreateIssueComment(
		ctx,
		entry.Branch.RepositoryOwner,
		entry.Branch.Repository,
		entry.PullNumber,
		fmt.Sprintf("automerge: pull request was removed from the merge queue, %s", msg),
	)
	if err != nil {
		logger.Error(
			"posting comment to github PR failed",
			logfields.Event("posting_comment_failed"),
			zap.Error(err),
		)
	}
}

func isTransientErr(err error) bool {
	return amerr.IsRetryable(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, retry.ErrStopped)
}

func (w *Worker) processEntry(ctx context.Context, logger *zap.Logger, entry *Entry) resultLabelVal {
	ctx, cancelFn := context.WithTimeout(ctx, operationTimeout)
	defer cancelFn()

	pr, err := w.pullRequest(ctx, entry)
	if err != nil {
		logger.Warn(
			"retrieving pull request failed, releasing claim",
			logfields.Event("retrieving_pull_request_failed"),
			zap.Error(err),
		)
		w.release(logger, entry)
		return resultTransient
	}

	logger = logger.With(logfields.Commit(pr.HeadSHA))

	if pr.IsClosed() {
		w.dequeue(ctx, logger, entry, logReasonPRClosed)
		return resultDropped
	}

	if pr.BaseRef != entry.Branch.Branch {
		w.dequeue(ctx, logger, entry, logReasonBaseChanged)
		return resultDropped
	}

	if failed := pr.ChecksWithState(pullrequest.CheckStateFailure); len(failed) > 0 {
		w.dequeueAndComment(
			ctx, logger, entry, logReasonChecksFailed,
			fmt.Sprintf("status checks failed: %s", strings.Join(failed, ", ")),
		)
		return resultFailed
	}

	if !pr.Behind {
		logger.Debug(
			"pull request is uptodate with base branch, waiting for it to be merged",
			logReasonWaitingOnMerge,
		)
		return resultUptodate
	}

	return w.updateBranch(ctx, logger, entry)
}

func (w *Worker) pullRequest(ctx context.Context, entry *Entry) (*pullrequest.Snapshot, error) {
	var pr *pullrequest.Snapshot

	err := w.retryer.Run(ctx, func(ctx context.Context) error {
		var err error

		pr, err = w.clt.PullRequest(ctx, entry.Branch.RepositoryOwner, entry.Branch.Repository, entry.PullNumber)
		return err
	}, entry.Logfields())
	if err != nil {
		return nil, err
	}

	return pr, nil
}

func (w *Worker) updateBranch(ctx context.Context, logger *zap.Logger, entry *Entry) resultLabelVal {
	method := entry.SyncMethod
	if method == "" {
		method = githubclt.UpdateMethodMerge
	}

	var result *githubclt.UpdateBranchResult
	err := w.retryer.Run(ctx, func(ctx context.Context) error {
		var err error

		result, err = w.clt.UpdateBranch(
			ctx,
			entry.Branch.RepositoryOwner,
			entry.Branch.Repository,
			entry.PullNumber,
			method,
		)
		return err
	}, entry.Logfields())

	switch {
	case err == nil:
		if result.Changed {
			logger.Info(
				"branch updated with changes from base branch",
				logfields.Event("github_branch_updated"),
				zap.Bool("github.update_scheduled", result.Scheduled),
			)
			return resultUpdated
		}

		logger.Debug("branch is uptodate with base branch")
		return resultUptodate

	case errors.Is(err, githubclt.ErrPullRequestIsClosed):
		w.dequeue(ctx, logger, entry, logReasonPRClosed)
		return resultDropped

	case isTransientErr(err):
		logger.Warn(
			"updating branch with base branch failed temporarily, releasing claim",
			logfields.Event("branch_update_failed"),
			zap.Error(err),
		)
		w.release(logger, entry)
		return resultTransient

	case errors.Is(err, githubclt.ErrMergeConflict):
		w.dequeueAndComment(
			ctx, logger, entry, logReasonUpdateFailed,
			"updating the branch failed because of a merge conflict with the base branch",
		)
		return resultFailed

	default:
		logger.Info(
			"updating branch with base branch failed",
			logfields.Event("branch_update_failed"),
			zap.Error(err),
		)
		w.dequeueAndComment(
			ctx, logger, entry, logReasonUpdateFailed,
			fmt.Sprintf("updating the branch with its base branch failed:\n```\n%s\n```", err),
		)
		return resultFailed
	}
}
