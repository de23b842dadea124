// Package merge implements the merge action. It decides for a pull request
// that matches a merge rule whether it is merged now, updated with its base
// branch first, or whether merging is postponed or aborted.
package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/amerr"
	"github.com/simplesurance/automerge/internal/commitmsg"
	"github.com/simplesurance/automerge/internal/githubclt"
	"github.com/simplesurance/automerge/internal/logfields"
	"github.com/simplesurance/automerge/internal/pullrequest"
	"github.com/simplesurance/automerge/internal/stringutils"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . PullRequestContext,Queue,GithubClient,Condition

// PullRequestContext provides access to the pull request that is processed.
type PullRequestContext interface {
	// Pull returns the last retrieved state of the pull request.
	Pull() *pullrequest.Snapshot
	// Refresh retrieves the current state of the pull request.
	Refresh(ctx context.Context) error
	Logger() *zap.Logger
	// BaseIsModifiable returns true if the pull request branch can be
	// updated with its base branch.
	BaseIsModifiable() bool
}

// Queue is the merge queue that serializes base branch updates.
type Queue interface {
	AddPull(ctx context.Context, pr *pullrequest.Snapshot, method githubclt.UpdateMethod) error
	RemovePull(ctx context.Context, pr *pullrequest.Snapshot) error
}

// GithubClient are the github operations that are done by the action.
type GithubClient interface {
	MergePullRequest(ctx context.Context, owner, repo string, number int, opts *githubclt.MergeOptions) error
	UpdateBranch(ctx context.Context, owner, repo string, number int, method githubclt.UpdateMethod) (*githubclt.UpdateBranchResult, error)
}

// Condition is a rule condition that is not satisfied by the pull request.
type Condition interface {
	// AttributeName is the name of the pull request attribute the
	// condition is evaluated on.
	AttributeName() string
	// Match returns true if the condition is satisfied when the
	// attribute has the given value.
	Match(value string) bool
}

const loggerName = "merge_action"

// statusConditionPrefix is the prefix of attributes that refer to status
// checks.
const statusConditionPrefix = "status-"

// Action merges pull requests.
type Action struct {
	cfg      *Config
	clt      GithubClient
	queue    Queue
	botLogin string
}

// Option is an optional argument of NewAction.
type Option func(*Action)

// WithBotLogin sets the GitHub login that merges pull requests. It is used
// to report if a pull request was merged automatically or manually.
func WithBotLogin(login string) Option {
	return func(a *Action) {
		a.botLogin = login
	}
}

// NewAction creates a merge Action.
// queue is only used in StrictSmart mode and can be nil otherwise.
func NewAction(cfg *Config, clt GithubClient, queue Queue, opts ...Option) (*Action, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Strict == StrictSmart && queue == nil {
		return nil, fmt.Errorf("%w: strict mode %q requires a merge queue", ErrInvalidConfig, StrictSmart)
	}

	a := Action{
		cfg:   cfg,
		clt:   clt,
		queue: queue,
	}

	for _, opt := range opts {
		opt(&a)
	}

	return &a, nil
}

func (a *Action) logger(prCtx PullRequestContext) *zap.Logger {
	return prCtx.Logger().Named(loggerName).With(logfields.Strict(string(a.cfg.Strict)))
}

// Run is called when all conditions of the merge rule are satisfied.
// Depending on the state of the pull request and the configuration it is
// merged, updated with its base branch or enqueued in the merge queue.
func (a *Action) Run(ctx context.Context, prCtx PullRequestContext, missing []Condition) Outcome {
	logger := a.logger(prCtx)
	pr := prCtx.Pull()

	logger.Debug("processing merge action", logfields.Event("merge_action_run"))

	if out, ok := Report(pr, a.cfg.Strict, a.botLogin); ok {
		if a.cfg.Strict == StrictSmart {
			a.removeFromQueue(ctx, prCtx)
		}

		return a.finish(prCtx, operationRun, out)
	}

	if a.cfg.Strict != StrictOff && pr.Behind {
		return a.finish(prCtx, operationRun, a.syncWithBaseBranch(ctx, prCtx))
	}

	out, enqueued := a.merge(ctx, prCtx)
	if a.cfg.Strict == StrictSmart && !enqueued {
		a.removeFromQueue(ctx, prCtx)
	}

	return a.finish(prCtx, operationRun, out)
}

// Cancel is called when the conditions of the merge rule are not satisfied
// anymore.
// In strict mode, when the only unsatisfied conditions are status checks
// that did not finish yet, the action is not cancelled.
func (a *Action) Cancel(ctx context.Context, prCtx PullRequestContext, missing []Condition) Outcome {
	if a.cfg.Strict != StrictOff && requiredStatusesInProgress(prCtx.Pull(), missing) {
		a.logger(prCtx).Debug(
			"only status check conditions are unsatisfied and checks are in progress, waiting",
			logfields.Event("merge_action_waiting_for_ci"),
		)

		return a.finish(prCtx, operationCancel, waitForCIOutcome)
	}

	if a.cfg.Strict == StrictSmart {
		a.removeFromQueue(ctx, prCtx)
	}

	return a.finish(prCtx, operationCancel, cancelledOutcome)
}

func (a *Action) finish(prCtx PullRequestContext, op operationLabelVal, out Outcome) Outcome {
	logF := []zap.Field{
		logfields.Event("merge_action_finished"),
		logfields.OutcomeStatus(string(out.Status)),
		zap.String("summary", out.Summary),
		zap.String("detail", stringutils.FirstLine(out.Detail)),
	}

	if out.IsTerminal() {
		a.logger(prCtx).Info("merge action finished", logF...)
	} else {
		a.logger(prCtx).Debug("merge action finished, waiting for next run", logF...)
	}

	metrics.OutcomeInc(op, out.Status)

	return out
}

// requiredStatusesInProgress returns true if all missing conditions refer to
// status checks and at least one of the checks they refer to did not
// finish yet.
func requiredStatusesInProgress(pr *pullrequest.Snapshot, missing []Condition) bool {
	if pr.IsClosed() {
		return false
	}

	var statusConds []Condition

	for _, c := range missing {
		if !strings.HasPrefix(c.AttributeName(), statusConditionPrefix) {
			return false
		}

		statusConds = append(statusConds, c)
	}

	if len(statusConds) == 0 {
		return false
	}

	if len(pr.Checks) == 0 {
		return true
	}

	var matched bool
	for name, state := range pr.Checks {
		for _, c := range statusConds {
			if !c.Match(name) {
				continue
			}

			matched = true

			if state == pullrequest.CheckStatePending || state == pullrequest.CheckStateNone {
				return true
			}
		}
	}

	return !matched
}

func (a *Action) removeFromQueue(ctx context.Context, prCtx PullRequestContext) {
	if err := a.queue.RemovePull(ctx, prCtx.Pull()); err != nil {
		a.logger(prCtx).Error(
			"removing pull request from merge queue failed",
			logfields.Event("merge_queue_remove_failed"),
			zap.Error(err),
		)
	}
}

func (a *Action) syncWithBaseBranch(ctx context.Context, prCtx PullRequestContext) Outcome {
	logger := a.logger(prCtx)
	pr := prCtx.Pull()

	if !prCtx.BaseIsModifiable() {
		return newOutcome(
			StatusActionRequired,
			"Pull request can't be updated with latest base branch changes, owner doesn't allow modification",
			"Allow edits from maintainers or update the pull request manually.",
		)
	}

	if a.cfg.Strict == StrictSmart {
		if err := a.queue.AddPull(ctx, pr, a.cfg.StrictMethod); err != nil {
			logger.Error(
				"adding pull request to merge queue failed",
				logfields.Event("merge_queue_add_failed"),
				zap.Error(err),
			)

			return newOutcome(
				StatusFailure,
				"Adding the pull request to the merge queue failed",
				err.Error(),
			)
		}

		logger.Info(
			"pull request enqueued for base branch update",
			logfields.Event("merge_queue_pull_added"),
			logfields.SyncMethod(string(a.cfg.StrictMethod)),
		)

		return newOutcome(
			StatusNone,
			"Base branch will be updated soon",
			"The pull request base branch will be updated soon, and then merged.",
		)
	}

	res, err := a.clt.UpdateBranch(ctx, pr.Owner, pr.Repository, pr.Number, a.cfg.StrictMethod)
	if err != nil {
		if amerr.IsRetryable(err) {
			return newOutcome(
				StatusNone,
				"Base branch update failed temporarily",
				fmt.Sprintf("The base branch update will be retried: %s", err),
			)
		}

		return newOutcome(StatusFailure, "Base branch update has failed", err.Error())
	}

	logger.Info(
		"pull request branch updated with base branch",
		logfields.Event("merge_base_branch_updated"),
		logfields.SyncMethod(string(a.cfg.StrictMethod)),
		zap.Bool("github.update_scheduled", res.Scheduled),
	)

	return newOutcome(
		StatusNone,
		"Base branch update done",
		"The pull request has been automatically updated to follow its base branch and will be merged soon.",
	)
}

func (a *Action) mergeMethod(pr *pullrequest.Snapshot) (githubclt.MergeMethod, bool) {
	if a.cfg.Method != githubclt.MergeMethodRebase || pr.Rebaseable {
		return a.cfg.Method, true
	}

	if a.cfg.RebaseFallback == RebaseFallbackNone {
		return "", false
	}

	return githubclt.MergeMethod(a.cfg.RebaseFallback), true
}

func commitMessageErrorOutcome(err error) Outcome {
	const summary = "Invalid commit message"

	var templErr *commitmsg.TemplateError
	var unknownErr *pullrequest.UnknownAttributeError

	switch {
	case errors.As(err, &unknownErr):
		return newOutcome(
			StatusActionRequired,
			summary,
			fmt.Sprintf("There is an error in your commit message, the following variable is unknown: %s", unknownErr.Name),
		)

	case errors.As(err, &templErr):
		return newOutcome(
			StatusActionRequired,
			summary,
			fmt.Sprintf("There is an error in your commit message: %s", templErr),
		)

	default:
		return newOutcome(StatusFailure, summary, err.Error())
	}
}

// merge tries to merge the pull request. enqueued is true when the
// pull request was added to the merge queue instead.
func (a *Action) merge(ctx context.Context, prCtx PullRequestContext) (out Outcome, enqueued bool) {
	logger := a.logger(prCtx)
	pr := prCtx.Pull()

	method, ok := a.mergeMethod(pr)
	if !ok {
		return newOutcome(
			StatusActionRequired,
			"Automatic rebasing is not possible, manual intervention required",
			"",
		), false
	}

	msg, err := commitmsg.Derive(pr, a.cfg.CommitMessage)
	if err != nil {
		return commitMessageErrorOutcome(err), false
	}

	opts := githubclt.MergeOptions{
		SHA:    pr.HeadSHA,
		Method: method,
	}
	if msg != nil {
		opts.CommitTitle = msg.Title
		opts.CommitMessage = msg.Body
	}

	logger = logger.With(logfields.MergeMethod(string(method)))

	mergeErr := a.clt.MergePullRequest(ctx, pr.Owner, pr.Repository, pr.Number, &opts)

	if err := prCtx.Refresh(ctx); err != nil {
		logger.Error(
			"refreshing pull request after merge request failed",
			logfields.Event("merge_refresh_failed"),
			zap.Error(err),
			zap.NamedError("merge_error", mergeErr),
		)

		if mergeErr == nil {
			return newOutcome(
				StatusSuccess,
				"The pull request has been merged automatically",
				fmt.Sprintf("The pull request has been merged automatically at *%s*", pr.HeadSHA),
			), false
		}

		return newOutcome(
			StatusFailure,
			"Failed to merge the pull request",
			fmt.Sprintf("Merging failed: %s, retrieving the pull request state afterwards failed: %s", mergeErr, err),
		), false
	}

	pr = prCtx.Pull()

	if mergeErr != nil {
		if pr.Merged {
			logger.Info("merged in the meantime", logfields.Event("merge_merged_concurrently"), zap.Error(mergeErr))
		} else {
			return a.handleMergeError(ctx, prCtx, mergeErr)
		}
	} else {
		logger.Info("pull request merged", logfields.Event("merge_pull_request_merged"))
	}

	if out, ok := Report(pr, a.cfg.Strict, a.botLogin); ok {
		return out, false
	}

	return newOutcome(
		StatusNone,
		"Waiting for GitHub to report the pull request as merged",
		"The merge request was accepted but the pull request is not reported as merged yet.",
	), false
}

func (a *Action) handleMergeError(ctx context.Context, prCtx PullRequestContext, err error) (Outcome, bool) {
	logger := a.logger(prCtx).With(zap.Error(err))

	var clientErr *githubclt.ClientError
	if !errors.As(err, &clientErr) {
		if amerr.IsRetryable(err) {
			logger.Info("merging failed temporarily", logfields.Event("merge_failed_temporarily"))

			return newOutcome(
				StatusNone,
				"Merging the pull request failed temporarily",
				fmt.Sprintf("Merging will be retried, error: %s", err),
			), false
		}

		logger.Info("merging failed", logfields.Event("merge_failed"))

		return newOutcome(StatusFailure, "Failed to merge the pull request", err.Error()), false
	}

	logger = logger.With(logfields.HTTPStatusCode(clientErr.StatusCode))

	classification := Classify(clientErr.StatusCode, clientErr.Message)
	logger = logger.With(zap.Stringer("merge.error_classification", classification))

	switch classification {
	case ClassificationCancel:
		logger.Info("head branch was modified in the meantime", logfields.Event("merge_head_modified"))

		return newOutcome(
			StatusCancelled,
			"Head branch was modified in the meantime",
			"The head branch was modified, the merge action has been cancelled.",
		), false

	case ClassificationResync:
		logger.Info("base branch was modified in the meantime, retrying", logfields.Event("merge_base_modified"))

		out := a.syncWithBaseBranch(ctx, prCtx)
		return out, a.cfg.Strict == StrictSmart && out.Status == StatusNone

	case ClassificationWait:
		logger.Info("waiting for the branch protection to be validated", logfields.Event("merge_waiting_for_branch_protection"))

		return newOutcome(
			StatusNone,
			"Waiting for the Branch Protection to be validated",
			"Branch Protection is enabled and is preventing the pull request from being merged. "+
				"It will be merged when the branch protection settings validate the pull request. "+
				fmt.Sprintf("(detail: %s)", clientErr.Message),
		), false

	default:
		logger.Info("merge failed", logfields.Event("merge_failed"))

		return newOutcome(
			StatusFailure,
			"Failed to merge the pull request",
			fmt.Sprintf("GitHub error message: `%s`", clientErr.Message),
		), false
	}
}
