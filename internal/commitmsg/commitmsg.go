package commitmsg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

// Mode defines how the commit message is derived.
type Mode string

const (
	// ModeDefault uses the "Commit Message" section of the pull request
	// body if it exists, otherwise GitHub chooses the message.
	ModeDefault Mode = "default"
	// ModeTitleBody uses the pull request title and body.
	ModeTitleBody Mode = "title+body"
)

// ParseMode converts s to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDefault, ModeTitleBody:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported commit message mode: %q, supported: %q, %q", s, ModeDefault, ModeTitleBody)
	}
}

// Message is the title and body of a merge commit.
type Message struct {
	Title string
	Body  string
}

var (
	commitMsgHeadingRe = regexp.MustCompile(`(?i)^#+ commit message ?:?\s*$`)
	headingRe          = regexp.MustCompile(`^#+ `)
)

// Derive returns the commit message for the pull request.
// If nil is returned, GitHub chooses the commit message.
// Rendering failures are returned as *TemplateError or
// *pullrequest.UnknownAttributeError.
func Derive(pr *pullrequest.Snapshot, mode Mode) (*Message, error) {
	switch mode {
	case ModeTitleBody:
		return &Message{Title: pr.Title, Body: pr.Body}, nil

	case ModeDefault:
		return deriveFromBody(pr)

	default:
		return nil, fmt.Errorf("unsupported commit message mode: %q", mode)
	}
}

func deriveFromBody(pr *pullrequest.Snapshot) (*Message, error) {
	lines := extractSection(pr.Body)
	if len(lines) == 0 {
		return nil, nil
	}

	title, err := Render(strings.TrimSpace(lines[0]), pr)
	if err != nil {
		return nil, err
	}

	bodyLines := trimLeadingBlank(lines[1:])
	for i, l := range bodyLines {
		bodyLines[i] = strings.TrimSpace(l)
	}

	body, err := Render(strings.Join(bodyLines, "\n"), pr)
	if err != nil {
		return nil, err
	}

	return &Message{Title: title, Body: body}, nil
}

// extractSection returns the lines of the commit message section without
// leading and trailing blank lines.
func extractSection(body string) []string {
	var result []string
	var inSection bool

	for _, line := range strings.Split(normalizeNewlines(body), "\n") {
		switch {
		case commitMsgHeadingRe.MatchString(line):
			// repeated commit message headings are skipped
			inSection = true
		case !inSection:
			continue
		case headingRe.MatchString(line):
			return trimTrailingBlank(trimLeadingBlank(result))
		default:
			result = append(result, line)
		}
	}

	return trimTrailingBlank(trimLeadingBlank(result))
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func trimLeadingBlank(lines []string) []string {
	for len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}

	return lines
}

func trimTrailingBlank(lines []string) []string {
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}

	return lines
}
