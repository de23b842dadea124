package githubclt

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

// CIStatus abstracts the multiple result values of GitHub check runs and
// Commit statuses into a single value.
type CIStatus string

const (
	CIStatusSuccess CIStatus = "SUCCESS"
	CIStatusPending CIStatus = "PENDING"
	CIStatusFailure CIStatus = "FAILURE"
	// CIStatusMissing is the status of a required check that did not
	// report a result.
	CIStatusMissing CIStatus = ""
)

// CIJobStatus is the status of a CI job.
// It represents the status of GitHub CheckRuns and Commit statuses.
type CIJobStatus struct {
	Name     string
	Status   CIStatus
	Required bool
}

// CIStatusResult contains the CI job results of the head commit of a pull
// request.
type CIStatusResult struct {
	Overall  CIStatus
	Statuses []*CIJobStatus
	Commit   string
}

// CheckStates converts the job statuses to a map of check name to
// pullrequest.CheckState.
func (r *CIStatusResult) CheckStates() map[string]pullrequest.CheckState {
	result := make(map[string]pullrequest.CheckState, len(r.Statuses))

	for _, st := range r.Statuses {
		switch st.Status {
		case CIStatusSuccess:
			result[st.Name] = pullrequest.CheckStateSuccess
		case CIStatusFailure:
			result[st.Name] = pullrequest.CheckStateFailure
		case CIStatusPending:
			result[st.Name] = pullrequest.CheckStatePending
		default:
			result[st.Name] = pullrequest.CheckStateNone
		}
	}

	return result
}

// CIStatus returns the [status check rollup] for a PR.
//
// The returned [CIStatusResult.Overall] is [CIStatusPending], if one or
// more checks or status are in pending state or a required one did not
// report a result.
// It is [CIStatusSuccess], if no check or status is in pending state and all
// required ones succeeded.
// If a required check or status is in failed state the CIStatus is
// [CIStatusFailure].
//
// [status check rollup]: https://docs.github.com/en/graphql/reference/objects#statuscheckrollup
func (clt *Client) CIStatus(ctx context.Context, owner, repo string, prNumber int) (*CIStatusResult, error) {
	queryResult, err := clt.ciStatus(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	statuses, err := toCIJobStatuses(queryResult.RequiredStatusCheckContexts, queryResult.CheckRuns, queryResult.StatusContext)
	if err != nil {
		return nil, err
	}

	return &CIStatusResult{
		Overall:  overallCIStatus(queryResult.StatusCheckRollupState, statuses),
		Statuses: statuses,
		Commit:   queryResult.Commit,
	}, nil
}

func overallCIStatus(statusCheckRollupState githubv4.StatusState, statuses []*CIJobStatus) CIStatus {
	if statusCheckRollupState == githubv4.StatusStatePending {
		return CIStatusPending
	}

	result := CIStatusSuccess
	for _, status := range statuses {
		if status.Status == CIStatusPending || status.Status == CIStatusMissing {
			result = CIStatusPending
			continue
		}

		if status.Required && status.Status == CIStatusFailure {
			return CIStatusFailure
		}
	}

	return result
}

func toCIJobStatuses(
	requiredChecks []string,
	checkRuns []*queryCheckStatus,
	commitStatuses []*queryStatusContext,
) ([]*CIJobStatus, error) {
	statusesByName := make(map[string]*CIJobStatus, len(checkRuns)+len(commitStatuses)+len(requiredChecks))
	var order []string

	for _, context := range requiredChecks {
		if _, exists := statusesByName[context]; exists {
			return nil, fmt.Errorf("found 2 required status with the same context values: %q, context values must be unique", context)
		}

		statusesByName[context] = &CIJobStatus{
			Name:     context,
			Status:   CIStatusMissing,
			Required: true,
		}
		order = append(order, context)
	}

	add := func(name string, status CIStatus) {
		if entry, exists := statusesByName[name]; exists {
			entry.Status = status
			return
		}

		statusesByName[name] = &CIJobStatus{Name: name, Status: status}
		order = append(order, name)
	}

	for _, run := range checkRuns {
		status, err := checkRunResultToCiStatus(run.Status, run.Conclusion)
		if err != nil {
			return nil, fmt.Errorf("converting checkRun %q CIstatus failed: %w", run.Name, err)
		}

		add(run.Name, status)
	}

	for _, commitStatus := range commitStatuses {
		status, err := contextStatusStateToCIStatus(commitStatus.State)
		if err != nil {
			return nil, fmt.Errorf("converting %q status context to CIstatus failed: %w",
				commitStatus.Context, err)
		}

		add(commitStatus.Context, status)
	}

	result := make([]*CIJobStatus, 0, len(order))
	for _, name := range order {
		result = append(result, statusesByName[name])
	}

	return result, nil
}

func checkRunResultToCiStatus(status githubv4.CheckStatusState, conclusion githubv4.CheckConclusionState) (CIStatus, error) {
	switch status {
	case "IN_PROGRESS", "PENDING", "QUEUED", "REQUESTED", "WAITING":
		return CIStatusPending, nil

	case "COMPLETED":
		return checkConclusiontoCIStatus(conclusion)

	default:
		return "", fmt.Errorf("unsupported status value: %q", status)
	}
}

func checkConclusiontoCIStatus(conclusion githubv4.CheckConclusionState) (CIStatus, error) {
	switch conclusion {
	case "CANCELLED", "FAILURE", "STALE", "STARTUP_FAILURE", "TIMED_OUT":
		return CIStatusFailure, nil

	case "ACTION_REQUIRED":
		return CIStatusPending, nil

	case "NEUTRAL", "SKIPPED", "SUCCESS":
		return CIStatusSuccess, nil

	default:
		return "", fmt.Errorf("unsupported conclusion value: %q", conclusion)
	}
}

func contextStatusStateToCIStatus(state githubv4.StatusState) (CIStatus, error) {
	switch state {
	case githubv4.StatusStateError,
		githubv4.StatusStateFailure:
		return CIStatusFailure, nil

	case githubv4.StatusStateExpected,
		githubv4.StatusStatePending:
		return CIStatusPending, nil

	case githubv4.StatusStateSuccess:
		return CIStatusSuccess, nil

	default:
		return "", fmt.Errorf("unsupported status state value: %q", state)
	}
}

type queryCheckStatus struct {
	Name       string
	Conclusion githubv4.CheckConclusionState
	Status     githubv4.CheckStatusState
}

type queryStatusContext struct {
	State   githubv4.StatusState
	Context string
}

type queryCIStatusResult struct {
	StatusCheckRollupState      githubv4.StatusState
	RequiredStatusCheckContexts []string
	CheckRuns                   []*queryCheckStatus
	StatusContext               []*queryStatusContext
	Commit                      string
}

func (clt *Client) ciStatus(ctx context.Context, owner, repo string, prNumber int) (*queryCIStatusResult, error) {
	type graphQLQueryCIStatus struct {
		Repository struct {
			PullRequest struct {
				BaseRef struct {
					BranchProtectionRule struct {
						// RequiredStatusCheckContexts
						// contains required commit
						// statuses and checkRuns.
						RequiredStatusCheckContexts []string
					}
				}

				Commits struct {
					Nodes []struct {
						Commit struct {
							Oid               string
							StatusCheckRollup struct {
								State    githubv4.StatusState
								Contexts struct {
									PageInfo struct {
										EndCursor   string
										HasNextPage bool
									}
									Edges []struct {
										Node struct {
											CheckRun      queryCheckStatus   `graphql:"... on CheckRun"`
											StatusContext queryStatusContext `graphql:"... on StatusContext"`
										}
									}
								} `graphql:"contexts(first: $contextsFirst, after: $contextsAfter)"`
							}
						}
					}
				} `graphql:"commits(last: $commitsLast)"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	var prHEADCommitID string
	var result queryCIStatusResult

	vars := map[string]any{
		"owner":         githubv4.String(owner),
		"name":          githubv4.String(repo),
		"number":        githubv4.Int(prNumber),
		"commitsLast":   githubv4.Int(1),
		"contextsFirst": githubv4.Int(100),
		"contextsAfter": (*githubv4.String)(nil),
	}

	for {
		var q graphQLQueryCIStatus

		err := clt.graphQLClt.Query(ctx, &q, vars)
		if err != nil {
			return nil, err
		}

		if len(q.Repository.PullRequest.Commits.Nodes) == 0 {
			return nil, fmt.Errorf("github returned no commits for pull request %d", prNumber)
		}

		commitsNode := q.Repository.PullRequest.Commits.Nodes[0].Commit

		if prHEADCommitID == "" {
			prHEADCommitID = commitsNode.Oid
		} else if prHEADCommitID != commitsNode.Oid {
			// head changed while paginating, start over
			vars["contextsAfter"] = (*githubv4.String)(nil)
			prHEADCommitID = ""
			result = queryCIStatusResult{}

			continue
		}

		for _, edge := range commitsNode.StatusCheckRollup.Contexts.Edges {
			node := edge.Node
			if node.CheckRun.Name != "" && node.StatusContext.Context != "" {
				return nil, fmt.Errorf("internal error: node contains checkRun and context, expecting only one")
			}

			if node.CheckRun.Name != "" {
				result.CheckRuns = append(result.CheckRuns, &node.CheckRun)
				continue
			}

			result.StatusContext = append(result.StatusContext, &node.StatusContext)
		}

		pageInfo := commitsNode.StatusCheckRollup.Contexts.PageInfo
		if !pageInfo.HasNextPage {
			result.StatusCheckRollupState = commitsNode.StatusCheckRollup.State
			result.RequiredStatusCheckContexts = q.Repository.PullRequest.BaseRef.BranchProtectionRule.RequiredStatusCheckContexts
			result.Commit = prHEADCommitID

			return &result, nil
		}

		if pageInfo.EndCursor == "" {
			return nil, fmt.Errorf("retrieving all contexts failed, HasNextPage is %t, expected non-empty EndCursor", pageInfo.HasNextPage)
		}

		vars["contextsAfter"] = githubv4.String(pageInfo.EndCursor)
	}
}
