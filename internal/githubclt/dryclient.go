package githubclt

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/logfields"
	"github.com/simplesurance/automerge/internal/pullrequest"
)

// API is the set of operations provided by Client.
type API interface {
	PullRequest(ctx context.Context, owner, repo string, number int) (*pullrequest.Snapshot, error)
	MergePullRequest(ctx context.Context, owner, repo string, number int, opts *MergeOptions) error
	UpdateBranch(ctx context.Context, owner, repo string, number int, method UpdateMethod) (*UpdateBranchResult, error)
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
}

// DryClient is a github-client that does not do any changes on github.
// All operations that could cause a change are simulated and always succeed.
// All other operations are forwarded to the wrapped API.
type DryClient struct {
	clt    API
	logger *zap.Logger
}

func NewDryClient(clt API, logger *zap.Logger) *DryClient {
	return &DryClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryClient) PullRequest(ctx context.Context, owner, repo string, number int) (*pullrequest.Snapshot, error) {
	return c.clt.PullRequest(ctx, owner, repo, number)
}

func (c *DryClient) MergePullRequest(_ context.Context, owner, repo string, number int, opts *MergeOptions) error {
	c.logger.Info(
		"simulated merging of pull request, pull request was not merged",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		logfields.MergeMethod(string(opts.Method)),
		logfields.Commit(opts.SHA),
		zap.String("commit_title", opts.CommitTitle),
	)

	return nil
}

func (c *DryClient) UpdateBranch(_ context.Context, owner, repo string, number int, method UpdateMethod) (*UpdateBranchResult, error) {
	c.logger.Info(
		"simulated updating of github branch, returning is uptodate",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		logfields.SyncMethod(string(method)),
	)

	return &UpdateBranchResult{}, nil
}

func (c *DryClient) CreateIssueComment(_ context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	c.logger.Info(
		"simulated creating of github issue comment, no comment created on github",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(issueOrPRNr),
		zap.String("comment", comment),
	)

	return nil
}
