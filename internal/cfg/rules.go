package cfg

import (
	"errors"
	"fmt"

	"github.com/simplesurance/automerge/internal/condition"
	"github.com/simplesurance/automerge/internal/merge"
)

// ErrNotFound is returned when a rule does not exist.
var ErrNotFound = errors.New("not found")

// Rule is a merge rule. When all Conditions are satisfied by a pull
// request, the actions are run.
type Rule struct {
	Name       string                   `toml:"name"`
	Conditions []string                 `toml:"conditions"`
	Actions    []map[string]interface{} `toml:"action"`
}

// MergeConfig returns the configuration of the merge action of the rule.
func (r *Rule) MergeConfig() (*merge.Config, error) {
	var result *merge.Config

	for i, a := range r.Actions {
		name, ok := a["action"]
		if !ok {
			return nil, fmt.Errorf("action %d: missing field: 'action'", i)
		}

		if name != merge.ActionName {
			return nil, fmt.Errorf("action %d: unsupported action: %v", i, name)
		}

		if result != nil {
			return nil, fmt.Errorf("action %d: only 1 merge action per rule is allowed", i)
		}

		mergeCfg, err := merge.NewConfigFromMap(a)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}

		result = mergeCfg
	}

	if result == nil {
		return nil, errors.New("missing array field: 'action'")
	}

	return result, nil
}

// ParsedConditions returns the parsed conditions of the rule.
func (r *Rule) ParsedConditions() ([]*condition.Condition, error) {
	return condition.ParseAll(r.Conditions)
}

// Rule returns the rule with the given name.
func (c *Config) Rule(name string) (*Rule, error) {
	for _, r := range c.Rules {
		if r.Name == name {
			return r, nil
		}
	}

	return nil, fmt.Errorf("rule %q: %w", name, ErrNotFound)
}

func validateRules(rules []*Rule) error {
	var errs []error
	names := make(map[string]struct{}, len(rules))

	for i, r := range rules {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("rule %d: missing field: 'name'", i))
			continue
		}

		if _, exist := names[r.Name]; exist {
			errs = append(errs, fmt.Errorf("rule %s: name is not unique", r.Name))
		}
		names[r.Name] = struct{}{}

		if _, err := r.MergeConfig(); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.Name, err))
		}

		if _, err := r.ParsedConditions(); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: conditions: %w", r.Name, err))
		}
	}

	return errors.Join(errs...)
}
