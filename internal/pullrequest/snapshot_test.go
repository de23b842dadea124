package pullrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSnapshot() *Snapshot {
	return &Snapshot{
		Owner:            "simplesurance",
		Repository:       "automerge",
		Number:           42,
		Title:            "Fix the frobnicator",
		Body:             "It was broken",
		Author:           "octocat",
		HeadRef:          "fix-frob",
		HeadSHA:          "abc123",
		HeadRepoFullName: "fork/automerge",
		BaseRef:          "main",
		BaseSHA:          "def456",
		BaseRepoFullName: "simplesurance/automerge",
		State:            StateOpen,
		Labels:           []string{"bug", "automerge"},
		Checks: map[string]CheckState{
			"ci/test":  CheckStateSuccess,
			"ci/lint":  CheckStatePending,
			"ci/build": CheckStateFailure,
			"ci/e2e":   CheckStateNone,
		},
	}
}

func TestAttribute(t *testing.T) {
	s := newTestSnapshot()

	tcs := []struct {
		name     string
		expected any
	}{
		{"number", 42},
		{"title", "Fix the frobnicator"},
		{"author", "octocat"},
		{"head", "fix-frob"},
		{"head-sha", "abc123"},
		{"base", "main"},
		{"state", "open"},
		{"closed", false},
		{"draft", false},
		{"label", []string{"bug", "automerge"}},
		{"assignee", []string{}},
		{"status-success", []string{"ci/test"}},
		{"status-pending", []string{"ci/lint"}},
		{"status-failure", []string{"ci/build"}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			v, err := s.Attribute(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}

func TestUnknownAttribute(t *testing.T) {
	s := newTestSnapshot()

	_, err := s.Attribute("nonexisting")
	var unknownErr *UnknownAttributeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nonexisting", unknownErr.Name)

	assert.Equal(t, Missing, s.AttributeOrMissing("nonexisting"))
	assert.Equal(t, "main", s.AttributeOrMissing("base"))
}

func TestIsKnownAttribute(t *testing.T) {
	assert.True(t, IsKnownAttribute("base"))
	assert.True(t, IsKnownAttribute("status-success"))
	assert.False(t, IsKnownAttribute("status_success"))
	assert.False(t, IsKnownAttribute(""))
}

func TestAttributeNamesAreResolvable(t *testing.T) {
	s := newTestSnapshot()

	names := AttributeNames()
	require.NotEmpty(t, names)

	for _, name := range names {
		_, err := s.Attribute(name)
		assert.NoError(t, err, name)
	}
}

func TestBaseIsModifiable(t *testing.T) {
	s := newTestSnapshot()
	assert.False(t, s.BaseIsModifiable())

	s.MaintainerCanModify = true
	assert.True(t, s.BaseIsModifiable())

	s.MaintainerCanModify = false
	s.HeadRepoFullName = s.BaseRepoFullName
	assert.True(t, s.BaseIsModifiable())
}

func TestIsClosed(t *testing.T) {
	s := newTestSnapshot()
	assert.False(t, s.IsClosed())

	s.State = StateMerged
	assert.True(t, s.IsClosed())

	s.State = StateClosed
	assert.True(t, s.IsClosed())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "a, b", FormatValue([]string{"a", "b"}))
	assert.Equal(t, "12", FormatValue(12))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "x", FormatValue("x"))
	assert.Equal(t, "<missing>", FormatValue(Missing))
}
