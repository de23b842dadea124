package merge

import (
	"fmt"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

// Report returns the outcome for pull requests that are in a state that
// does not allow or require to merge them.
// If the pull request can be merged, false is returned.
// botLogin is the GitHub login under that merges are done, it is used to
// distinguish automatic from manual merges.
func Report(pr *pullrequest.Snapshot, strict StrictMode, botLogin string) (Outcome, bool) {
	switch {
	case pr.Draft:
		return newOutcome(StatusNone, "Draft flag needs to be removed", ""), true

	case pr.Merged || pr.State == pullrequest.StateMerged:
		mode := "manually"
		if botLogin != "" && pr.MergedBy == botLogin {
			mode = "automatically"
		}

		return newOutcome(
			StatusSuccess,
			fmt.Sprintf("The pull request has been merged %s", mode),
			fmt.Sprintf("The pull request has been merged %s at *%s*", mode, pr.MergeCommitSHA),
		), true

	case pr.State == pullrequest.StateClosed:
		return newOutcome(StatusCancelled, "The pull request has been closed manually", ""), true

	case pr.MergeableState == pullrequest.MergeableStateDirty:
		return newOutcome(StatusCancelled, "Merge conflict needs to be solved", ""), true

	case pr.MergeableState == pullrequest.MergeableStateUnknown:
		return newOutcome(StatusFailure, "Pull request state reported as `unknown` by GitHub", ""), true

	case pr.MergeableState == pullrequest.MergeableStateBehind && strict == StrictOff:
		return newOutcome(
			StatusFailure,
			"Branch protection setting 'strict' conflicts with the merge configuration",
			"The branch protection of the base branch requires pull requests to be up to date before merging, "+
				"enable strict mode in the merge action configuration.",
		), true
	}

	return Outcome{}, false
}
