// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/automerge/internal/amerr"
	"github.com/simplesurance/automerge/internal/logfields"
	"github.com/simplesurance/automerge/internal/pullrequest"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// New returns a new github api client.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is an github API client.
// All methods return an amerr.RetryableError when an operation can be retried.
// This can be e.g. the case when the API ratelimit is exceeded.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

// BranchIsBehindBase returns true if head is based on an old commit of baseBranch.
// head can be a branch name or a commit SHA, commits of forks of the
// repository are resolved by their SHA.
// If it is based on the newest commit, false is returned.
func (clt *Client) BranchIsBehindBase(ctx context.Context, owner, repo, baseBranch, head string) (behind bool, err error) {
	cmp, _, err := clt.restClt.Repositories.CompareCommits(ctx, owner, repo, baseBranch, head, &github.ListOptions{PerPage: 1})
	if err != nil {
		return false, clt.wrapRetryableErrors(err)
	}

	if cmp.BehindBy == nil {
		return false, amerr.Retryable(amerr.CauseIncompleteResponse, errors.New("github returned a nil BehindBy field"))
	}

	return *cmp.BehindBy > 0, nil
}

func (clt *Client) getPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	if pr.GetHead().GetSHA() == "" {
		return nil, errors.New("got pull request object with empty head sha")
	}

	if pr.GetHead().GetRef() == "" {
		return nil, errors.New("got pull request object with empty head ref field")
	}

	if pr.GetBase().GetRef() == "" {
		return nil, errors.New("got pull request object with empty base ref field")
	}

	return pr, nil
}

func (clt *Client) prIsBehind(ctx context.Context, owner, repo string, pr *github.PullRequest) (bool, error) {
	if pr.GetMergeableState() == pullrequest.MergeableStateBehind {
		return true, nil
	}

	return clt.BranchIsBehindBase(ctx, owner, repo, pr.GetBase().GetRef(), pr.GetHead().GetSHA())
}

// PullRequest returns a snapshot of the current state of a pull request,
// including the state of its status checks.
func (clt *Client) PullRequest(ctx context.Context, owner, repo string, number int) (*pullrequest.Snapshot, error) {
	pr, err := clt.getPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	result := toSnapshot(owner, repo, pr)

	if result.State != pullrequest.StateOpen {
		return result, nil
	}

	result.Behind, err = clt.prIsBehind(ctx, owner, repo, pr)
	if err != nil {
		return nil, fmt.Errorf("evaluating if branch is behind base failed: %w", err)
	}

	checks, err := clt.CIStatus(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("retrieving status checks failed: %w", err)
	}

	if checks.Commit == result.HeadSHA {
		result.Checks = checks.CheckStates()
	} else {
		clt.logger.Debug(
			"pull request head changed while retrieving status checks, checks are ignored",
			logfields.Event("github_checks_head_changed"),
			logfields.Commit(result.HeadSHA),
			zap.String("github.checks_commit", checks.Commit),
		)
		result.Checks = map[string]pullrequest.CheckState{}
	}

	return result, nil
}

func toSnapshot(owner, repo string, pr *github.PullRequest) *pullrequest.Snapshot {
	result := pullrequest.Snapshot{
		Owner:               owner,
		Repository:          repo,
		Number:              pr.GetNumber(),
		NodeID:              pr.GetNodeID(),
		Title:               pr.GetTitle(),
		Body:                pr.GetBody(),
		Author:              pr.GetUser().GetLogin(),
		HeadRef:             pr.GetHead().GetRef(),
		HeadSHA:             pr.GetHead().GetSHA(),
		HeadRepoFullName:    pr.GetHead().GetRepo().GetFullName(),
		BaseRef:             pr.GetBase().GetRef(),
		BaseSHA:             pr.GetBase().GetSHA(),
		BaseRepoFullName:    pr.GetBase().GetRepo().GetFullName(),
		Draft:               pr.GetDraft(),
		Merged:              pr.GetMerged(),
		MergedBy:            pr.GetMergedBy().GetLogin(),
		MergeCommitSHA:      pr.GetMergeCommitSHA(),
		Mergeable:           pr.Mergeable,
		Rebaseable:          pr.GetRebaseable(),
		MergeableState:      pr.GetMergeableState(),
		MaintainerCanModify: pr.GetMaintainerCanModify(),
		Milestone:           pr.GetMilestone().GetTitle(),
		Checks:              map[string]pullrequest.CheckState{},
	}

	switch {
	case pr.GetMerged():
		result.State = pullrequest.StateMerged
	case pr.GetState() == "closed":
		result.State = pullrequest.StateClosed
	default:
		result.State = pullrequest.StateOpen
	}

	for _, l := range pr.Labels {
		result.Labels = append(result.Labels, l.GetName())
	}

	for _, a := range pr.Assignees {
		result.Assignees = append(result.Assignees, a.GetLogin())
	}

	return &result
}

// MergePullRequest merges a pull request.
// If GitHub rejects the request with a 4xx status code, a *ClientError is
// returned.
func (clt *Client) MergePullRequest(ctx context.Context, owner, repo string, number int, opts *MergeOptions) error {
	_, _, err := clt.restClt.PullRequests.Merge(ctx, owner, repo, number, opts.CommitMessage, &github.PullRequestOptions{
		CommitTitle: opts.CommitTitle,
		SHA:         opts.SHA,
		MergeMethod: string(opts.Method),
	})
	if err == nil {
		clt.logger.Debug(
			"pull request merged",
			logfields.Event("github_pull_request_merged"),
			logfields.RepositoryOwner(owner),
			logfields.Repository(repo),
			logfields.PullRequest(number),
			logfields.MergeMethod(string(opts.Method)),
		)

		return nil
	}

	err = clt.wrapRetryableErrors(err)

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		if code >= 400 && code < 500 {
			return &ClientError{StatusCode: code, Message: respErr.Message, Err: err}
		}
	}

	return err
}

// CreateIssueComment creates a comment in a issue or pull request
func (clt *Client) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	_, _, err := clt.restClt.Issues.CreateComment(ctx, owner, repo, issueOrPRNr, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

func (clt *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return amerr.RetryableAfter(amerr.CauseRateLimit, err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		clt.logger.Info(
			"secondary rate limit exceeded",
			logfields.Event("github_api_secondary_rate_limit_exceeded"),
			zap.Duration("github_api_retry_after", v.GetRetryAfter()),
		)

		return amerr.RetryableAfter(amerr.CauseSecondaryRateLimit, err, time.Now().Add(v.GetRetryAfter()))

	case *github.ErrorResponse:
		if v.Response != nil && v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return amerr.Retryable(amerr.CauseServerError, err)
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return amerr.Retryable(amerr.CauseServerError, err)
	}

	return err
}

func isHeadChangedErr(msg string) bool {
	// GitHub uses a typographic apostrophe in the message.
	return strings.Contains(msg, "expected head sha didn’t match current head ref") ||
		strings.Contains(msg, "expected head sha didn't match current head ref")
}
