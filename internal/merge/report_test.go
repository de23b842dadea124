package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

func TestReport(t *testing.T) {
	const bot = "automerge-bot"

	tcs := []struct {
		name     string
		pr       pullrequest.Snapshot
		strict   StrictMode
		expected Status
		summary  string
		reported bool
	}{
		{
			name:     "draft",
			pr:       pullrequest.Snapshot{State: pullrequest.StateOpen, Draft: true},
			expected: StatusNone,
			summary:  "Draft flag needs to be removed",
			reported: true,
		},
		{
			name:     "merged automatically",
			pr:       pullrequest.Snapshot{State: pullrequest.StateMerged, Merged: true, MergedBy: bot},
			expected: StatusSuccess,
			summary:  "The pull request has been merged automatically",
			reported: true,
		},
		{
			name:     "merged manually",
			pr:       pullrequest.Snapshot{State: pullrequest.StateMerged, Merged: true, MergedBy: "octocat"},
			expected: StatusSuccess,
			summary:  "The pull request has been merged manually",
			reported: true,
		},
		{
			name:     "closed",
			pr:       pullrequest.Snapshot{State: pullrequest.StateClosed},
			expected: StatusCancelled,
			summary:  "The pull request has been closed manually",
			reported: true,
		},
		{
			name:     "conflict",
			pr:       pullrequest.Snapshot{State: pullrequest.StateOpen, MergeableState: pullrequest.MergeableStateDirty},
			expected: StatusCancelled,
			summary:  "Merge conflict needs to be solved",
			reported: true,
		},
		{
			name:     "unknown",
			pr:       pullrequest.Snapshot{State: pullrequest.StateOpen, MergeableState: pullrequest.MergeableStateUnknown},
			expected: StatusFailure,
			reported: true,
		},
		{
			name:     "behind not strict",
			pr:       pullrequest.Snapshot{State: pullrequest.StateOpen, MergeableState: pullrequest.MergeableStateBehind},
			strict:   StrictOff,
			expected: StatusFailure,
			reported: true,
		},
		{
			name:   "behind strict",
			pr:     pullrequest.Snapshot{State: pullrequest.StateOpen, MergeableState: pullrequest.MergeableStateBehind},
			strict: StrictOn,
		},
		{
			name: "clean",
			pr:   pullrequest.Snapshot{State: pullrequest.StateOpen, MergeableState: pullrequest.MergeableStateClean},
		},
		{
			name: "blocked",
			pr:   pullrequest.Snapshot{State: pullrequest.StateOpen, MergeableState: pullrequest.MergeableStateBlocked},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			strict := tc.strict
			if strict == "" {
				strict = StrictOff
			}

			out, reported := Report(&tc.pr, strict, bot)
			assert.Equal(t, tc.reported, reported)

			if !tc.reported {
				return
			}

			assert.Equal(t, tc.expected, out.Status)
			if tc.summary != "" {
				assert.Equal(t, tc.summary, out.Summary)
			}
		})
	}
}
