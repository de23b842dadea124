package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/amerr"
	"github.com/simplesurance/automerge/internal/logfields"
	"github.com/simplesurance/automerge/internal/pullrequest"
)

// PullRequestBranchUpdateMethod is the updateMethod argument of the
// updatePullRequestBranch GraphQL mutation.
type PullRequestBranchUpdateMethod string

const (
	PullRequestBranchUpdateMethodMerge  PullRequestBranchUpdateMethod = "MERGE"
	PullRequestBranchUpdateMethodRebase PullRequestBranchUpdateMethod = "REBASE"
)

// UpdatePullRequestBranchInput is the input of the updatePullRequestBranch
// GraphQL mutation.
type UpdatePullRequestBranchInput struct {
	PullRequestID   githubv4.ID                    `json:"pullRequestId"`
	ExpectedHeadOid *githubv4.GitObjectID          `json:"expectedHeadOid,omitempty"`
	UpdateMethod    *PullRequestBranchUpdateMethod `json:"updateMethod,omitempty"`
}

// UpdateBranch updates a pull request branch with the changes of its base
// branch.
// With UpdateMethodMerge the base branch is merged into the pull request
// branch, with UpdateMethodRebase the pull request branch is rebased onto it.
//
// If the PR contains all changes of it's base branch, Changed is false.
// If the PR was updated while the method was executed, an
// amerr.RetryableError is returned and the operation can be retried.
// If the branch can not be updated automatically because of a merge conflict,
// an error wrapping ErrMergeConflict is returned.
// If the pull request is closed, ErrPullRequestIsClosed is returned.
func (clt *Client) UpdateBranch(ctx context.Context, owner, repo string, pullRequestNumber int, method UpdateMethod) (*UpdateBranchResult, error) {
	// If UpdateBranch is called and the branch is already
	// uptodate, github creates an empty merge commit and changes
	// the branch. Therefore we have to check first if an update is
	// needed.
	pr, err := clt.getPullRequest(ctx, owner, repo, pullRequestNumber)
	if err != nil {
		return nil, err
	}

	if pr.GetState() == string(pullrequest.StateClosed) {
		return nil, ErrPullRequestIsClosed
	}

	headSHA := pr.GetHead().GetSHA()

	logger := clt.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(pullRequestNumber),
		logfields.Commit(headSHA),
		logfields.SyncMethod(string(method)),
	)

	behind, err := clt.prIsBehind(ctx, owner, repo, pr)
	if err != nil {
		return nil, fmt.Errorf("evaluating if PR is uptodate with base branch failed: %w", err)
	}

	if !behind {
		logger.Debug("branch is uptodate with base branch, skipping running update branch operation",
			logfields.Event("github_branch_uptodate_with_base"))
		return &UpdateBranchResult{HeadSHA: headSHA}, nil
	}

	switch method {
	case UpdateMethodMerge, "":
		return clt.updateBranchMerge(ctx, owner, repo, pullRequestNumber, headSHA)

	case UpdateMethodRebase:
		return clt.updateBranchRebase(ctx, pr.GetNodeID(), headSHA)

	default:
		return nil, fmt.Errorf("unsupported update method: %q", method)
	}
}

func (clt *Client) updateBranchMerge(ctx context.Context, owner, repo string, pullRequestNumber int, headSHA string) (*UpdateBranchResult, error) {
	logger := clt.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(pullRequestNumber),
		logfields.Commit(headSHA),
	)

	_, _, err := clt.restClt.PullRequests.UpdateBranch(ctx, owner, repo, pullRequestNumber, &github.PullRequestBranchUpdateOptions{ExpectedHeadSHA: &headSHA})
	if err != nil {
		if _, ok := err.(*github.AcceptedError); ok {
			logger.Debug("updating branch with base branch scheduled",
				logfields.Event("github_branch_update_with_base_scheduled"))
			return &UpdateBranchResult{Changed: true, Scheduled: true, HeadSHA: headSHA}, nil
		}

		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil {
			if respErr.Response.StatusCode == http.StatusUnprocessableEntity {
				if strings.Contains(respErr.Message, "merge conflict") {
					return nil, fmt.Errorf("%w: %s", ErrMergeConflict, respErr.Message)
				}

				if isHeadChangedErr(respErr.Message) {
					logger.Debug("branch changed while trying to sync with base branch",
						logfields.Event("github_branch_update_failed_ref_outdated"),
					)

					return nil, amerr.Retryable(amerr.CauseHeadChanged, err)
				}
			}
		}

		return nil, clt.wrapRetryableErrors(err)
	}

	logger.Debug("branch was updated with base branch",
		logfields.Event("github_branch_update_with_base_triggered"))

	return &UpdateBranchResult{Changed: true, HeadSHA: headSHA}, nil
}

func (clt *Client) updateBranchRebase(ctx context.Context, prNodeID, headSHA string) (*UpdateBranchResult, error) {
	var m struct {
		UpdatePullRequestBranch struct {
			PullRequest struct {
				HeadRefOid string
			}
		} `graphql:"updatePullRequestBranch(input: $input)"`
	}

	oid := githubv4.GitObjectID(headSHA)
	method := PullRequestBranchUpdateMethodRebase

	err := clt.graphQLClt.Mutate(ctx, &m, UpdatePullRequestBranchInput{
		PullRequestID:   githubv4.ID(prNodeID),
		ExpectedHeadOid: &oid,
		UpdateMethod:    &method,
	}, nil)
	if err != nil {
		if strings.Contains(err.Error(), "merge conflict") {
			return nil, fmt.Errorf("%w: %s", ErrMergeConflict, err)
		}

		if isHeadChangedErr(err.Error()) {
			return nil, amerr.Retryable(amerr.CauseHeadChanged, err)
		}

		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	clt.logger.Debug("branch was rebased onto base branch",
		logfields.Event("github_branch_rebase_with_base_triggered"),
		logfields.Commit(headSHA),
		zap.String("github.new_head", m.UpdatePullRequestBranch.PullRequest.HeadRefOid),
	)

	return &UpdateBranchResult{Changed: true, HeadSHA: headSHA}, nil
}
