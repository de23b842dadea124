package commitmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

func newPR(body string) *pullrequest.Snapshot {
	return &pullrequest.Snapshot{
		Number:  7,
		Title:   "Fix the frobnicator",
		Body:    body,
		Author:  "octocat",
		HeadRef: "fix-frob",
		HeadSHA: "abc123",
		BaseRef: "main",
		State:   pullrequest.StateOpen,
		Labels:  []string{"bug", "urgent"},
	}
}

func TestDeriveExtractsSection(t *testing.T) {
	pr := newPR("intro\n# Commit Message\nFix bug\n\nDetails here\n# Another Heading\nignored")

	msg, err := Derive(pr, ModeDefault)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "Fix bug", msg.Title)
	assert.Equal(t, "Details here", msg.Body)
}

func TestDeriveSkipsRepeatedCommitMessageHeading(t *testing.T) {
	pr := newPR("# Commit Message\nFix bug\n## Commit Message:\nDetails here\n# Another Heading\nignored")

	msg, err := Derive(pr, ModeDefault)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "Fix bug", msg.Title)
	assert.Equal(t, "Details here", msg.Body)
}

func TestDeriveWithoutHeading(t *testing.T) {
	msg, err := Derive(newPR("just a description\nwithout heading"), ModeDefault)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDeriveEmptySection(t *testing.T) {
	msg, err := Derive(newPR("## Commit Message:\n\n   \n## Next\nfoo"), ModeDefault)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDeriveHeadingVariants(t *testing.T) {
	tcs := []string{
		"# Commit Message",
		"## commit message:",
		"### COMMIT MESSAGE :",
		"# Commit Message  ",
	}

	for _, heading := range tcs {
		t.Run(heading, func(t *testing.T) {
			msg, err := Derive(newPR(heading+"\ntitle\nbody"), ModeDefault)
			require.NoError(t, err)
			require.NotNil(t, msg)
			assert.Equal(t, "title", msg.Title)
			assert.Equal(t, "body", msg.Body)
		})
	}
}

func TestDeriveNotAHeading(t *testing.T) {
	msg, err := Derive(newPR("#Commit Message\ntitle"), ModeDefault)
	require.NoError(t, err)
	assert.Nil(t, msg)

	msg, err = Derive(newPR("# Commit Message for the release\ntitle"), ModeDefault)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDeriveCRLF(t *testing.T) {
	pr := newPR("intro\r\n## Commit Message\r\n\r\nFix {{ base }}\r\n\r\n\r\n  line one  \r\nline two\r\n\r\n")

	msg, err := Derive(pr, ModeDefault)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "Fix main", msg.Title)
	assert.Equal(t, "line one\nline two", msg.Body)
}

func TestDeriveTitleOnly(t *testing.T) {
	msg, err := Derive(newPR("# Commit Message\nonly a title\n"), ModeDefault)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "only a title", msg.Title)
	assert.Equal(t, "", msg.Body)
}

func TestDeriveRendersTemplates(t *testing.T) {
	pr := newPR("# Commit Message\n{{ title }} (#{{ number }})\n\nAuthor: {{ author | upper }}\nLabels: {{ label }}\nHead: {{ head_sha }}")

	msg, err := Derive(pr, ModeDefault)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "Fix the frobnicator (#7)", msg.Title)
	assert.Equal(t, "Author: OCTOCAT\nLabels: bug, urgent\nHead: abc123", msg.Body)
}

func TestDeriveTitleBodyIsVerbatim(t *testing.T) {
	pr := newPR("body with {{ unknown }} template")

	msg, err := Derive(pr, ModeTitleBody)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, pr.Title, msg.Title)
	assert.Equal(t, pr.Body, msg.Body)
}

func TestDeriveUnsupportedMode(t *testing.T) {
	_, err := Derive(newPR(""), Mode("invalid"))
	assert.Error(t, err)
}

func TestDeriveUnknownAttribute(t *testing.T) {
	_, err := Derive(newPR("# Commit Message\ntitle\n\n{{ nonexisting }}"), ModeDefault)

	var unknownErr *pullrequest.UnknownAttributeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nonexisting", unknownErr.Name)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("title+body")
	require.NoError(t, err)
	assert.Equal(t, ModeTitleBody, m)

	_, err = ParseMode("title")
	assert.Error(t, err)
}
