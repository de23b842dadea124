package merge

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/automerge/internal/amerr"
	"github.com/simplesurance/automerge/internal/githubclt"
	"github.com/simplesurance/automerge/internal/merge/mocks"
	"github.com/simplesurance/automerge/internal/pullrequest"
)

// testPRContext returns the snapshots in refreshed one after the other on
// Refresh calls.
type testPRContext struct {
	pr         *pullrequest.Snapshot
	refreshed  []*pullrequest.Snapshot
	refreshErr error
	refreshCnt int
	logger     *zap.Logger
}

func (c *testPRContext) Pull() *pullrequest.Snapshot {
	return c.pr
}

func (c *testPRContext) Refresh(context.Context) error {
	c.refreshCnt++

	if c.refreshErr != nil {
		return c.refreshErr
	}

	if len(c.refreshed) > 0 {
		c.pr = c.refreshed[0]
		c.refreshed = c.refreshed[1:]
	}

	return nil
}

func (c *testPRContext) Logger() *zap.Logger {
	return c.logger
}

func (c *testPRContext) BaseIsModifiable() bool {
	return c.pr.BaseIsModifiable()
}

func newTestPR() *pullrequest.Snapshot {
	return &pullrequest.Snapshot{
		Owner:               "octo",
		Repository:          "repo",
		Number:              12,
		Title:               "Add feature",
		Body:                "Description",
		HeadRef:             "feature",
		HeadSHA:             "headsha",
		HeadRepoFullName:    "octo/repo",
		BaseRef:             "main",
		BaseRepoFullName:    "octo/repo",
		State:               pullrequest.StateOpen,
		Rebaseable:          true,
		MergeableState:      pullrequest.MergeableStateClean,
		MaintainerCanModify: true,
		Checks:              map[string]pullrequest.CheckState{},
	}
}

func mergedPR(pr *pullrequest.Snapshot) *pullrequest.Snapshot {
	result := *pr
	result.State = pullrequest.StateMerged
	result.Merged = true
	result.MergedBy = "automerge-bot"
	result.MergeCommitSHA = "mergesha"

	return &result
}

func newPRCtx(t *testing.T, pr *pullrequest.Snapshot, refreshed ...*pullrequest.Snapshot) *testPRContext {
	return &testPRContext{
		pr:        pr,
		refreshed: refreshed,
		logger:    zaptest.NewLogger(t),
	}
}

type testEnv struct {
	clt   *mocks.MockGithubClient
	queue *mocks.MockQueue
}

func newTestAction(t *testing.T, cfg *Config) (*Action, *testEnv) {
	t.Helper()

	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	env := testEnv{
		clt:   mocks.NewMockGithubClient(mockctrl),
		queue: mocks.NewMockQueue(mockctrl),
	}

	action, err := NewAction(cfg, env.clt, env.queue, WithBotLogin("automerge-bot"))
	require.NoError(t, err)

	return action, &env
}

func cfgWith(fn func(*Config)) *Config {
	cfg := DefaultConfig()
	fn(cfg)
	return cfg
}

func TestRunMergesPullRequest(t *testing.T) {
	action, env := newTestAction(t, DefaultConfig())

	pr := newTestPR()
	pr.Body = "## Commit Message\nAdd feature (#{{ number }})\n\nBy {{ author | upper }}"
	pr.Author = "octocat"

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, &githubclt.MergeOptions{
			SHA:           "headsha",
			Method:        githubclt.MergeMethodMerge,
			CommitTitle:   "Add feature (#12)",
			CommitMessage: "By OCTOCAT",
		}).
		Return(nil)

	prCtx := newPRCtx(t, pr, mergedPR(pr))
	out := action.Run(context.Background(), prCtx, nil)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "The pull request has been merged automatically", out.Summary)
	assert.Contains(t, out.Detail, "mergesha")
	assert.Equal(t, 1, prCtx.refreshCnt)
}

func TestRunWithoutCommitMessageSectionLetsGithubChoose(t *testing.T) {
	action, env := newTestAction(t, DefaultConfig())

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, &githubclt.MergeOptions{
			SHA:    "headsha",
			Method: githubclt.MergeMethodMerge,
		}).
		Return(nil)

	out := action.Run(context.Background(), newPRCtx(t, pr, mergedPR(pr)), nil)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestRunRebaseNotPossibleWithoutFallback(t *testing.T) {
	action, _ := newTestAction(t, cfgWith(func(c *Config) {
		c.Method = githubclt.MergeMethodRebase
		c.RebaseFallback = RebaseFallbackNone
	}))

	pr := newTestPR()
	pr.Rebaseable = false

	// no MergePullRequest call is expected, gomock fails the test on
	// unexpected calls
	out := action.Run(context.Background(), newPRCtx(t, pr), nil)

	assert.Equal(t, StatusActionRequired, out.Status)
	assert.Equal(t, "Automatic rebasing is not possible, manual intervention required", out.Summary)
}

func TestRunRebaseFallback(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) {
		c.Method = githubclt.MergeMethodRebase
		c.RebaseFallback = RebaseFallbackSquash
	}))

	pr := newTestPR()
	pr.Rebaseable = false

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, &githubclt.MergeOptions{
			SHA:    "headsha",
			Method: githubclt.MergeMethodSquash,
		}).
		Return(nil)

	out := action.Run(context.Background(), newPRCtx(t, pr, mergedPR(pr)), nil)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestRunRebaseableUsesRebase(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) {
		c.Method = githubclt.MergeMethodRebase
		c.RebaseFallback = RebaseFallbackNone
	}))

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int, opts *githubclt.MergeOptions) error {
			assert.Equal(t, githubclt.MergeMethodRebase, opts.Method)
			return nil
		})

	out := action.Run(context.Background(), newPRCtx(t, pr, mergedPR(pr)), nil)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestRunAlreadyMergedSmartRemovesFromQueue(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := mergedPR(newTestPR())
	env.queue.EXPECT().RemovePull(gomock.Any(), pr).Return(nil)

	out := action.Run(context.Background(), newPRCtx(t, pr), nil)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestRunStrictBehindUpdatesBranch(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) {
		c.Strict = StrictOn
		c.StrictMethod = githubclt.UpdateMethodRebase
	}))

	pr := newTestPR()
	pr.Behind = true
	pr.MergeableState = pullrequest.MergeableStateBehind

	env.clt.EXPECT().
		UpdateBranch(gomock.Any(), "octo", "repo", 12, githubclt.UpdateMethodRebase).
		Return(&githubclt.UpdateBranchResult{Changed: true}, nil)

	out := action.Run(context.Background(), newPRCtx(t, pr), nil)

	assert.Equal(t, StatusNone, out.Status)
	assert.Equal(t, "Base branch update done", out.Summary)
}

func TestRunStrictBehindUpdateFails(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictOn }))

	pr := newTestPR()
	pr.Behind = true

	env.clt.EXPECT().
		UpdateBranch(gomock.Any(), "octo", "repo", 12, githubclt.UpdateMethodMerge).
		Return(nil, githubclt.ErrMergeConflict)

	out := action.Run(context.Background(), newPRCtx(t, pr), nil)

	assert.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, "Base branch update has failed", out.Summary)
}

func TestRunStrictBehindNotModifiable(t *testing.T) {
	action, _ := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictOn }))

	pr := newTestPR()
	pr.Behind = true
	pr.MaintainerCanModify = false
	pr.HeadRepoFullName = "fork/repo"

	out := action.Run(context.Background(), newPRCtx(t, pr), nil)
	assert.Equal(t, StatusActionRequired, out.Status)
}

func TestRunSmartBehindEnqueues(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) {
		c.Strict = StrictSmart
		c.StrictMethod = githubclt.UpdateMethodRebase
	}))

	pr := newTestPR()
	pr.Behind = true

	env.queue.EXPECT().AddPull(gomock.Any(), pr, githubclt.UpdateMethodRebase).Return(nil)

	out := action.Run(context.Background(), newPRCtx(t, pr), nil)

	assert.Equal(t, StatusNone, out.Status)
	assert.Equal(t, "Base branch will be updated soon", out.Summary)
}

func TestRunSmartEnqueueFails(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()
	pr.Behind = true

	env.queue.EXPECT().AddPull(gomock.Any(), pr, githubclt.UpdateMethodMerge).Return(errors.New("redis down"))

	out := action.Run(context.Background(), newPRCtx(t, pr), nil)
	assert.Equal(t, StatusFailure, out.Status)
	assert.Contains(t, out.Detail, "redis down")
}

func TestRunSmartMergeSuccessRemovesFromQueue(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()

	gomock.InOrder(
		env.clt.EXPECT().MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).Return(nil),
		env.queue.EXPECT().RemovePull(gomock.Any(), gomock.Any()).Return(nil),
	)

	out := action.Run(context.Background(), newPRCtx(t, pr, mergedPR(pr)), nil)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestRunSmartMergeFailureRemovesFromQueue(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		Return(&githubclt.ClientError{StatusCode: http.StatusUnprocessableEntity, Message: "Merge commits are not allowed"})
	env.queue.EXPECT().RemovePull(gomock.Any(), gomock.Any()).Return(nil)

	out := action.Run(context.Background(), newPRCtx(t, pr, pr), nil)

	assert.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, "GitHub error message: `Merge commits are not allowed`", out.Detail)
}

func TestRunMergeErrorButMergedMeanwhile(t *testing.T) {
	action, env := newTestAction(t, DefaultConfig())

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		Return(&githubclt.ClientError{StatusCode: http.StatusMethodNotAllowed, Message: "Pull Request is not mergeable"})

	out := action.Run(context.Background(), newPRCtx(t, pr, mergedPR(pr)), nil)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestRunMergeTimeoutButMerged(t *testing.T) {
	action, env := newTestAction(t, DefaultConfig())

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		Return(context.DeadlineExceeded)

	out := action.Run(context.Background(), newPRCtx(t, pr, mergedPR(pr)), nil)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestRunBaseBranchModifiedResyncs(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictOn }))

	pr := newTestPR()
	refreshed := *pr
	refreshed.Behind = true

	gomock.InOrder(
		env.clt.EXPECT().
			MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
			Return(&githubclt.ClientError{StatusCode: http.StatusMethodNotAllowed, Message: "Base branch was modified. Review and try the merge again."}),
		env.clt.EXPECT().
			UpdateBranch(gomock.Any(), "octo", "repo", 12, githubclt.UpdateMethodMerge).
			Return(&githubclt.UpdateBranchResult{Changed: true, Scheduled: true}, nil),
	)

	out := action.Run(context.Background(), newPRCtx(t, pr, &refreshed), nil)

	assert.Equal(t, StatusNone, out.Status)
	assert.Equal(t, "Base branch update done", out.Summary)
}

func TestRunSmartBaseBranchModifiedReenqueues(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		Return(&githubclt.ClientError{StatusCode: http.StatusMethodNotAllowed, Message: "Base branch was modified. Review and try the merge again."})
	env.queue.EXPECT().AddPull(gomock.Any(), gomock.Any(), githubclt.UpdateMethodMerge).Return(nil)
	// RemovePull must not be called, the pull request is waiting in the
	// queue for its update

	out := action.Run(context.Background(), newPRCtx(t, pr, pr), nil)

	assert.Equal(t, StatusNone, out.Status)
	assert.Equal(t, "Base branch will be updated soon", out.Summary)
}

func TestRunHeadBranchModifiedCancels(t *testing.T) {
	action, env := newTestAction(t, DefaultConfig())

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		Return(&githubclt.ClientError{StatusCode: http.StatusConflict, Message: "Head branch was modified. Review and try the merge again."})

	out := action.Run(context.Background(), newPRCtx(t, pr, pr), nil)

	assert.Equal(t, StatusCancelled, out.Status)
	assert.Equal(t, "Head branch was modified in the meantime", out.Summary)
}

func TestRunBranchProtectionWait(t *testing.T) {
	action, env := newTestAction(t, DefaultConfig())

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		Return(&githubclt.ClientError{StatusCode: http.StatusMethodNotAllowed, Message: "Required status check \"ci\" is expected."})

	out := action.Run(context.Background(), newPRCtx(t, pr, pr), nil)

	assert.Equal(t, StatusNone, out.Status)
	assert.Equal(t, "Waiting for the Branch Protection to be validated", out.Summary)
	assert.Contains(t, out.Detail, "Required status check \"ci\" is expected.")
}

func TestRunRetryableMergeErrorIsNotFatal(t *testing.T) {
	action, env := newTestAction(t, DefaultConfig())

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		Return(amerr.Retryable(amerr.CauseServerError, errors.New("502 bad gateway")))

	out := action.Run(context.Background(), newPRCtx(t, pr, pr), nil)
	assert.Equal(t, StatusNone, out.Status)
}

func TestRunRefreshFailsAfterMergeError(t *testing.T) {
	action, env := newTestAction(t, DefaultConfig())

	pr := newTestPR()

	env.clt.EXPECT().
		MergePullRequest(gomock.Any(), "octo", "repo", 12, gomock.Any()).
		Return(&githubclt.ClientError{StatusCode: http.StatusMethodNotAllowed, Message: "not mergeable"})

	prCtx := newPRCtx(t, pr)
	prCtx.refreshErr = errors.New("connection refused")

	out := action.Run(context.Background(), prCtx, nil)
	assert.Equal(t, StatusFailure, out.Status)
	assert.Contains(t, out.Detail, "connection refused")
}

func TestRunInvalidCommitMessage(t *testing.T) {
	tcs := []struct {
		body   string
		detail string
	}{
		{
			body:   "# Commit Message\ntitle\n\n{{ nonexisting }}",
			detail: "There is an error in your commit message, the following variable is unknown: nonexisting",
		},
		{
			body:   "# Commit Message\ntitle\n\n{{ if draft }}x{{ end }}",
			detail: "There is an error in your commit message: control structures are not allowed at line 1",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.body, func(t *testing.T) {
			action, _ := newTestAction(t, DefaultConfig())

			pr := newTestPR()
			pr.Body = tc.body

			out := action.Run(context.Background(), newPRCtx(t, pr), nil)

			assert.Equal(t, StatusActionRequired, out.Status)
			assert.Equal(t, "Invalid commit message", out.Summary)
			assert.Equal(t, tc.detail, out.Detail)
		})
	}
}

func newStatusCondition(t *testing.T, attr string, matches ...string) *mocks.MockCondition {
	cond := mocks.NewMockCondition(gomock.NewController(t))
	cond.EXPECT().AttributeName().Return(attr).AnyTimes()
	cond.EXPECT().Match(gomock.Any()).DoAndReturn(func(v string) bool {
		for _, m := range matches {
			if m == v {
				return true
			}
		}
		return false
	}).AnyTimes()

	return cond
}

func TestCancelWaitsForPendingChecks(t *testing.T) {
	action, _ := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()
	pr.Checks = map[string]pullrequest.CheckState{
		"ci/test": pullrequest.CheckStatePending,
		"ci/lint": pullrequest.CheckStateSuccess,
	}

	out := action.Cancel(context.Background(), newPRCtx(t, pr), []Condition{
		newStatusCondition(t, "status-success", "ci/test"),
	})

	assert.Equal(t, waitForCIOutcome, out)
}

func TestCancelWaitsForMissingChecks(t *testing.T) {
	action, _ := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictOn }))

	pr := newTestPR()
	pr.Checks = map[string]pullrequest.CheckState{"ci/required": pullrequest.CheckStateNone}

	out := action.Cancel(context.Background(), newPRCtx(t, pr), []Condition{
		newStatusCondition(t, "status-success", "ci/required"),
	})
	assert.Equal(t, StatusNone, out.Status)

	pr.Checks = nil
	out = action.Cancel(context.Background(), newPRCtx(t, pr), []Condition{
		newStatusCondition(t, "status-success", "ci/required"),
	})
	assert.Equal(t, StatusNone, out.Status)

	pr.Checks = map[string]pullrequest.CheckState{"other": pullrequest.CheckStateFailure}
	out = action.Cancel(context.Background(), newPRCtx(t, pr), []Condition{
		newStatusCondition(t, "status-success", "ci/required"),
	})
	assert.Equal(t, StatusNone, out.Status)
}

func TestCancelFailedCheckCancels(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()
	pr.Checks = map[string]pullrequest.CheckState{"ci/test": pullrequest.CheckStateFailure}

	env.queue.EXPECT().RemovePull(gomock.Any(), pr).Return(nil)

	out := action.Cancel(context.Background(), newPRCtx(t, pr), []Condition{
		newStatusCondition(t, "status-success", "ci/test"),
	})

	assert.Equal(t, cancelledOutcome, out)
}

func TestCancelNonStatusConditionCancels(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()
	pr.Checks = map[string]pullrequest.CheckState{"ci/test": pullrequest.CheckStatePending}

	env.queue.EXPECT().RemovePull(gomock.Any(), pr).Return(nil)

	out := action.Cancel(context.Background(), newPRCtx(t, pr), []Condition{
		newStatusCondition(t, "status-success", "ci/test"),
		newStatusCondition(t, "label", "automerge"),
	})

	assert.Equal(t, StatusCancelled, out.Status)
	assert.Equal(t, "The rule doesn't match anymore", out.Summary)
}

func TestCancelClosedPRCancels(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()
	pr.State = pullrequest.StateClosed
	pr.Checks = map[string]pullrequest.CheckState{"ci/test": pullrequest.CheckStatePending}

	env.queue.EXPECT().RemovePull(gomock.Any(), pr).Return(nil)

	out := action.Cancel(context.Background(), newPRCtx(t, pr), []Condition{
		newStatusCondition(t, "status-success", "ci/test"),
	})

	assert.Equal(t, StatusCancelled, out.Status)
}

func TestCancelNotStrictCancelsImmediately(t *testing.T) {
	action, _ := newTestAction(t, DefaultConfig())

	pr := newTestPR()
	pr.Checks = map[string]pullrequest.CheckState{"ci/test": pullrequest.CheckStatePending}

	out := action.Cancel(context.Background(), newPRCtx(t, pr), []Condition{
		newStatusCondition(t, "status-success", "ci/test"),
	})

	assert.Equal(t, StatusCancelled, out.Status)
}

func TestCancelWithoutMissingConditions(t *testing.T) {
	action, env := newTestAction(t, cfgWith(func(c *Config) { c.Strict = StrictSmart }))

	pr := newTestPR()
	env.queue.EXPECT().RemovePull(gomock.Any(), pr).Return(nil)

	out := action.Cancel(context.Background(), newPRCtx(t, pr), nil)
	assert.Equal(t, StatusCancelled, out.Status)
}
