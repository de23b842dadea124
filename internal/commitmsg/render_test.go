package commitmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

func TestRenderLiteralTextIsUnchanged(t *testing.T) {
	pr := newPR("")

	texts := []string{
		"",
		"plain text",
		"multi\nline\n\ntext with trailing newline\n",
		"special chars: {% raw %} } { $ .Title | upper",
		"unicode: äöü ✓",
	}

	for _, text := range texts {
		out, err := Render(text, pr)
		require.NoError(t, err, text)
		assert.Equal(t, text, out)
	}
}

func TestRenderFilters(t *testing.T) {
	pr := newPR("")
	pr.Author = "  mIxEd  "

	tcs := []struct {
		tmpl     string
		expected string
	}{
		{"{{ author | upper }}", "  MIXED  "},
		{"{{ author | lower }}", "  mixed  "},
		{"{{ author | trim }}", "mIxEd"},
		{"{{ author | trim | capitalize }}", "Mixed"},
		{"{{author|trim|lower}}", "mixed"},
		{`{{ "{{" }}`, "{{"},
	}

	for _, tc := range tcs {
		t.Run(tc.tmpl, func(t *testing.T) {
			out, err := Render(tc.tmpl, pr)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestRenderDashedAttributeNames(t *testing.T) {
	pr := newPR("")
	pr.MergeCommitSHA = "fff"

	out, err := Render("{{ head_sha }} {{ merge_commit_sha }}", pr)
	require.NoError(t, err)
	assert.Equal(t, "abc123 fff", out)
}

func TestRenderUnknownAttribute(t *testing.T) {
	pr := newPR("")

	for _, tmpl := range []string{
		"{{ unknown }}",
		"line1\n{{ title | nofilter }}",
		`{{ printf "%s" title }}`,
		"{{ len title }}",
	} {
		t.Run(tmpl, func(t *testing.T) {
			_, err := Render(tmpl, pr)

			var unknownErr *pullrequest.UnknownAttributeError
			require.ErrorAs(t, err, &unknownErr)
			assert.NotEmpty(t, unknownErr.Name)
		})
	}
}

func TestRenderRejectsControlStructures(t *testing.T) {
	pr := newPR("")

	tcs := []struct {
		tmpl string
		line int
	}{
		{"{{ if draft }}x{{ end }}", 1},
		{"first\nsecond\n{{ range label }}x{{ end }}", 3},
		{"{{ with title }}x{{ end }}", 1},
		{"{{ $x := title }}{{ $x }}", 1},
		{"{{ .Title }}", 1},
		{"{{ . }}", 1},
		{"a\n{{ (title) }}", 2},
		{"{{ 42 }}", 1},
	}

	for _, tc := range tcs {
		t.Run(tc.tmpl, func(t *testing.T) {
			_, err := Render(tc.tmpl, pr)

			var templErr *TemplateError
			require.ErrorAs(t, err, &templErr)
			assert.Equal(t, tc.line, templErr.Line)
			assert.NotEmpty(t, templErr.Reason)
		})
	}
}

func TestRenderRejectsDefine(t *testing.T) {
	_, err := Render(`{{ define "x" }}foo{{ end }}bar`, newPR(""))

	var templErr *TemplateError
	require.ErrorAs(t, err, &templErr)
}

func TestRenderSyntaxErrorHasLine(t *testing.T) {
	_, err := Render("ok\nok\n{{ title ", newPR(""))

	var templErr *TemplateError
	require.ErrorAs(t, err, &templErr)
	assert.Equal(t, 3, templErr.Line)
	assert.Contains(t, templErr.Error(), "at line 3")
}

func TestRenderExecutionError(t *testing.T) {
	_, err := Render("{{ upper }}", newPR(""))

	var templErr *TemplateError
	require.ErrorAs(t, err, &templErr)
	assert.Equal(t, 1, templErr.Line)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "Hello world", capitalize("hELLO WORLD"))
	assert.Equal(t, "Äpfel", capitalize("äPFEL"))
}
