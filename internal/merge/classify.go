package merge

import (
	"net/http"
	"strings"
)

// Classification is the interpretation of a failed merge request.
type Classification int

const (
	// ClassificationTerminal is a failure that can not be resolved
	// automatically.
	ClassificationTerminal Classification = iota
	// ClassificationResync means the base branch changed concurrently,
	// the pull request must be updated with its base branch again.
	ClassificationResync
	// ClassificationCancel means the head branch changed concurrently,
	// the evaluated state of the pull request is outdated.
	ClassificationCancel
	// ClassificationWait means branch protection prevents the merge
	// currently, e.g. because required checks are pending.
	ClassificationWait
)

func (c Classification) String() string {
	switch c {
	case ClassificationTerminal:
		return "terminal"
	case ClassificationResync:
		return "resync"
	case ClassificationCancel:
		return "cancel"
	case ClassificationWait:
		return "wait"
	default:
		return "invalid"
	}
}

type classificationRule struct {
	// messageSubstr is matched case-insensitive, empty matches all.
	messageSubstr string
	// statusCode 0 matches all.
	statusCode int
	result     Classification
}

// classificationRules are evaluated in order, the first matching rule
// wins.
var classificationRules = []classificationRule{
	{messageSubstr: "head branch was modified", result: ClassificationCancel},
	{messageSubstr: "base branch was modified", result: ClassificationResync},
	{statusCode: http.StatusMethodNotAllowed, result: ClassificationWait},
}

func (r *classificationRule) matches(statusCode int, lowerMsg string) bool {
	if r.statusCode != 0 && r.statusCode != statusCode {
		return false
	}

	return strings.Contains(lowerMsg, r.messageSubstr)
}

// Classify interprets the response of a failed merge request.
func Classify(statusCode int, message string) Classification {
	lowerMsg := strings.ToLower(message)

	for i := range classificationRules {
		if classificationRules[i].matches(statusCode, lowerMsg) {
			return classificationRules[i].result
		}
	}

	return ClassificationTerminal
}
