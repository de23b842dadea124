// Package prcontext provides the pull request state that merge actions
// operate on and keeps it up to date.
package prcontext

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

// GithubClient retrieves pull requests from GitHub.
type GithubClient interface {
	PullRequest(ctx context.Context, owner, repo string, number int) (*pullrequest.Snapshot, error)
}

// Retryer executes a function repeatedly until it succeeds or a permanent
// error happens.
type Retryer interface {
	Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error
}

// Context holds the last retrieved state of a pull request.
// It is not safe for concurrent use.
type Context struct {
	clt     GithubClient
	retryer Retryer

	owner  string
	repo   string
	number int

	pr     *pullrequest.Snapshot
	logger *zap.Logger
}

// New retrieves the pull request and returns a Context for it.
func New(ctx context.Context, clt GithubClient, retryer Retryer, owner, repo string, number int) (*Context, error) {
	c := Context{
		clt:     clt,
		retryer: retryer,
		owner:   owner,
		repo:    repo,
		number:  number,
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Context) Pull() *pullrequest.Snapshot {
	return c.pr
}

// Refresh retrieves the current state of the pull request from GitHub.
// Retryable errors are retried until ctx expires.
// On error the previous state is kept.
func (c *Context) Refresh(ctx context.Context) error {
	var pr *pullrequest.Snapshot

	err := c.retryer.Run(ctx, func(ctx context.Context) error {
		var err error

		pr, err = c.clt.PullRequest(ctx, c.owner, c.repo, c.number)
		return err
	}, c.logFields())
	if err != nil {
		return fmt.Errorf("retrieving pull request %s/%s#%d failed: %w", c.owner, c.repo, c.number, err)
	}

	if pr == nil {
		return fmt.Errorf("retrieving pull request %s/%s#%d failed: github client returned nil", c.owner, c.repo, c.number)
	}

	c.pr = pr
	c.logger = zap.L().Named("pull_request").With(pr.LogFields()...)

	return nil
}

func (c *Context) logFields() []zap.Field {
	if c.pr != nil {
		return c.pr.LogFields()
	}

	return (&pullrequest.Snapshot{Owner: c.owner, Repository: c.repo, Number: c.number}).LogFields()
}

// Logger returns a logger that has fields identifying the pull request
// set.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// BaseIsModifiable returns true if the branch of the pull request can be
// updated with its base branch.
func (c *Context) BaseIsModifiable() bool {
	return c.pr.BaseIsModifiable()
}
