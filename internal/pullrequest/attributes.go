package pullrequest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// UnknownAttributeError is returned when an attribute is resolved that does
// not exist.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("the following variable is unknown: %s", e.Name)
}

type missing struct{}

func (missing) String() string {
	return "<missing>"
}

// Missing is returned by AttributeOrMissing for unknown attribute names.
var Missing = missing{}

type accessor func(*Snapshot) any

var attributes = map[string]accessor{
	"number":           func(s *Snapshot) any { return s.Number },
	"title":            func(s *Snapshot) any { return s.Title },
	"body":             func(s *Snapshot) any { return s.Body },
	"author":           func(s *Snapshot) any { return s.Author },
	"head":             func(s *Snapshot) any { return s.HeadRef },
	"head-sha":         func(s *Snapshot) any { return s.HeadSHA },
	"base":             func(s *Snapshot) any { return s.BaseRef },
	"base-sha":         func(s *Snapshot) any { return s.BaseSHA },
	"state":            func(s *Snapshot) any { return string(s.State) },
	"draft":            func(s *Snapshot) any { return s.Draft },
	"merged":           func(s *Snapshot) any { return s.Merged },
	"closed":           func(s *Snapshot) any { return s.IsClosed() },
	"merged-by":        func(s *Snapshot) any { return s.MergedBy },
	"merge-commit-sha": func(s *Snapshot) any { return s.MergeCommitSHA },
	"milestone":        func(s *Snapshot) any { return s.Milestone },
	"label":            func(s *Snapshot) any { return copyStrs(s.Labels) },
	"assignee":         func(s *Snapshot) any { return copyStrs(s.Assignees) },
	"status-success":   func(s *Snapshot) any { return s.ChecksWithState(CheckStateSuccess) },
	"status-failure":   func(s *Snapshot) any { return s.ChecksWithState(CheckStateFailure) },
	"status-pending":   func(s *Snapshot) any { return s.ChecksWithState(CheckStatePending) },
}

func copyStrs(sl []string) []string {
	if sl == nil {
		return []string{}
	}

	return append([]string{}, sl...)
}

// AttributeNames returns the sorted names of all supported attributes.
func AttributeNames() []string {
	result := make([]string, 0, len(attributes))
	for k := range attributes {
		result = append(result, k)
	}

	sort.Strings(result)

	return result
}

// IsKnownAttribute returns true if an attribute with the name exists.
func IsKnownAttribute(name string) bool {
	_, exist := attributes[name]
	return exist
}

// Attribute returns the value of the attribute with the given name.
// The value is either a string, int, bool or []string.
// If the attribute does not exist an *UnknownAttributeError is returned.
func (s *Snapshot) Attribute(name string) (any, error) {
	fn, exist := attributes[name]
	if !exist {
		return nil, &UnknownAttributeError{Name: name}
	}

	return fn(s), nil
}

// AttributeOrMissing returns the value of the attribute or Missing when it
// does not exist.
func (s *Snapshot) AttributeOrMissing(name string) any {
	v, err := s.Attribute(name)
	if err != nil {
		return Missing
	}

	return v
}

// FormatValue converts an attribute value to its string representation.
// Lists are joined with ", ".
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case []string:
		return strings.Join(val, ", ")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
