// Package condition parses and evaluates merge rule conditions on pull
// request attributes.
//
// A condition has the form <attribute><operator><value>. Supported operators
// are:
//   - =  the attribute value equals value
//   - != the attribute value differs from value
//   - ~= the attribute value matches the regular expression value
//   - :  the jq filter value evaluates to true for the attribute value
//
// For attributes with list values, =, ~= match if any element matches and
// != matches if no element equals value. Jq filters are run on the whole
// list.
package condition

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/simplesurance/automerge/internal/pullrequest"
)

// Operator is the comparison operator of a condition.
type Operator string

const (
	OperatorEqual    Operator = "="
	OperatorNotEqual Operator = "!="
	OperatorRegex    Operator = "~="
	OperatorJQ       Operator = ":"
)

var conditionRe = regexp.MustCompile(`^\s*([a-z][a-z0-9-]*)\s*(!=|~=|=|:)\s*(.*?)\s*$`)

// Condition is a parsed condition.
type Condition struct {
	raw       string
	attribute string
	op        Operator
	value     string

	re *regexp.Regexp
	jq *gojq.Code
}

// Parse parses a condition.
// If the attribute does not exist a *pullrequest.UnknownAttributeError is
// returned.
func Parse(s string) (*Condition, error) {
	m := conditionRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid condition %q, expected format: <attribute><operator><value>", s)
	}

	c := Condition{
		raw:       strings.TrimSpace(s),
		attribute: m[1],
		op:        Operator(m[2]),
		value:     m[3],
	}

	if !pullrequest.IsKnownAttribute(c.attribute) {
		return nil, &pullrequest.UnknownAttributeError{Name: c.attribute}
	}

	switch c.op {
	case OperatorRegex:
		re, err := regexp.Compile(c.value)
		if err != nil {
			return nil, fmt.Errorf("condition %q: invalid regular expression: %w", s, err)
		}
		c.re = re

	case OperatorJQ:
		if c.value == "" {
			return nil, fmt.Errorf("condition %q: jq filter is empty", s)
		}

		query, err := gojq.Parse(c.value)
		if err != nil {
			return nil, fmt.Errorf("condition %q: parsing jq filter failed: %w", s, err)
		}

		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("condition %q: compiling jq filter failed: %w", s, err)
		}
		c.jq = code
	}

	return &c, nil
}

// MustParse is like Parse but panics on errors.
func MustParse(s string) *Condition {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return c
}

// ParseAll parses all conditions and returns the joined errors.
func ParseAll(conditions []string) ([]*Condition, error) {
	var errs []error
	result := make([]*Condition, 0, len(conditions))

	for _, s := range conditions {
		c, err := Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		result = append(result, c)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return result, nil
}

func (c *Condition) String() string {
	return c.raw
}

func (c *Condition) AttributeName() string {
	return c.attribute
}

// Match returns true if the condition is satisfied for a single attribute
// value.
func (c *Condition) Match(value string) bool {
	switch c.op {
	case OperatorEqual:
		return value == c.value
	case OperatorNotEqual:
		return value != c.value
	case OperatorRegex:
		return c.re.MatchString(value)
	case OperatorJQ:
		ok, _ := c.evalJQ(value)
		return ok
	default:
		return false
	}
}

// Evaluate returns true if the pull request satisfies the condition.
func (c *Condition) Evaluate(pr *pullrequest.Snapshot) (bool, error) {
	v, err := pr.Attribute(c.attribute)
	if err != nil {
		return false, err
	}

	if c.op == OperatorJQ {
		return c.evalJQ(toJQValue(v))
	}

	list, isList := v.([]string)
	if !isList {
		return c.Match(pullrequest.FormatValue(v)), nil
	}

	if c.op == OperatorNotEqual {
		for _, elem := range list {
			if elem == c.value {
				return false, nil
			}
		}

		return true, nil
	}

	for _, elem := range list {
		if c.Match(elem) {
			return true, nil
		}
	}

	return false, nil
}

// toJQValue converts v to a type that is supported as gojq input.
func toJQValue(v any) any {
	switch val := v.(type) {
	case []string:
		result := make([]any, 0, len(val))
		for _, s := range val {
			result = append(result, s)
		}
		return result
	default:
		return val
	}
}

func (c *Condition) evalJQ(input any) (bool, error) {
	iter := c.jq.RunWithContext(context.Background(), input)

	res, ok := iter.Next()
	if !ok {
		return false, fmt.Errorf("condition %q: jq filter returned 0 results, expected 1", c.raw)
	}

	if _, ok := iter.Next(); ok {
		return false, fmt.Errorf("condition %q: jq filter returned multiple results, expected 1", c.raw)
	}

	switch val := res.(type) {
	case error:
		return false, fmt.Errorf("condition %q: jq filter failed: %w", c.raw, val)
	case bool:
		return val, nil
	default:
		return false, fmt.Errorf("condition %q: jq filter returned non-bool result: %+v (%T)", c.raw, val, val)
	}
}

// Unsatisfied returns the conditions that the pull request does not satisfy.
// Conditions that can not be evaluated are treated as unsatisfied.
func Unsatisfied(pr *pullrequest.Snapshot, conditions []*Condition) []*Condition {
	var result []*Condition

	for _, c := range conditions {
		ok, err := c.Evaluate(pr)
		if err != nil || !ok {
			result = append(result, c)
		}
	}

	return result
}
