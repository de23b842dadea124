package merge

import (
	"errors"
	"fmt"

	"github.com/simplesurance/automerge/internal/commitmsg"
	"github.com/simplesurance/automerge/internal/githubclt"
	"github.com/simplesurance/automerge/internal/maputils"
)

// ErrInvalidConfig is wrapped by all errors caused by an invalid merge
// action configuration.
var ErrInvalidConfig = errors.New("invalid merge action configuration")

// ActionName is the value of the "action" key that selects the merge action.
const ActionName = "merge"

// StrictMode defines if and how a pull request is updated with its base
// branch before it is merged.
type StrictMode string

const (
	// StrictOff merges pull requests without updating them.
	StrictOff StrictMode = "off"
	// StrictOn updates pull requests synchronously when they are behind
	// their base branch.
	StrictOn StrictMode = "on"
	// StrictSmart enqueues pull requests that are behind their base
	// branch in the merge queue, they are updated one after the other.
	StrictSmart StrictMode = "smart"
)

// RebaseFallback is the merge method that is used when the rebase method
// is configured but the pull request can not be rebased.
type RebaseFallback string

const (
	RebaseFallbackMerge  RebaseFallback = "merge"
	RebaseFallbackSquash RebaseFallback = "squash"
	RebaseFallbackNone   RebaseFallback = "none"
)

// Config is the configuration of a merge action.
type Config struct {
	Method         githubclt.MergeMethod
	RebaseFallback RebaseFallback
	Strict         StrictMode
	StrictMethod   githubclt.UpdateMethod
	CommitMessage  commitmsg.Mode
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		Method:         githubclt.MergeMethodMerge,
		RebaseFallback: RebaseFallbackMerge,
		Strict:         StrictOff,
		StrictMethod:   githubclt.UpdateMethodMerge,
		CommitMessage:  commitmsg.ModeDefault,
	}
}

const (
	keyAction         = "action"
	keyMethod         = "method"
	keyRebaseFallback = "rebase_fallback"
	keyStrict         = "strict"
	keyStrictMethod   = "strict_method"
	keyCommitMessage  = "commit_message"
)

// NewConfigFromMap creates a Config from a map, as it is read from the
// configuration file. Keys that are not set have their default value.
// Unknown keys, values of the wrong type and unsupported values are
// rejected with an error wrapping ErrInvalidConfig.
func NewConfigFromMap(m map[string]any) (*Config, error) {
	if err := maputils.RejectUnknownKeys(m,
		keyAction, keyMethod, keyRebaseFallback, keyStrict, keyStrictMethod, keyCommitMessage,
	); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	if action, exist, err := maputils.StrVal(m, keyAction); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	} else if exist && action != ActionName {
		return nil, fmt.Errorf("%w: unsupported action %q", ErrInvalidConfig, action)
	}

	cfg := DefaultConfig()

	strVals := []struct {
		key string
		set func(string) error
	}{
		{keyMethod, func(v string) (err error) { cfg.Method, err = parseMergeMethod(v); return }},
		{keyRebaseFallback, func(v string) (err error) { cfg.RebaseFallback, err = parseRebaseFallback(v); return }},
		{keyStrictMethod, func(v string) (err error) { cfg.StrictMethod, err = parseUpdateMethod(v); return }},
		{keyCommitMessage, func(v string) (err error) { cfg.CommitMessage, err = commitmsg.ParseMode(v); return }},
	}

	for _, sv := range strVals {
		val, exist, err := maputils.StrVal(m, sv.key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
		}

		if !exist {
			continue
		}

		if err := sv.set(val); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, sv.key, err)
		}
	}

	strict, err := maputils.BoolOrStrVal(m, keyStrict)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	if strict != nil {
		cfg.Strict, err = parseStrict(strict)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, keyStrict, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error wrapping ErrInvalidConfig if a field of the
// config has an unsupported value.
func (c *Config) Validate() error {
	if _, err := parseMergeMethod(string(c.Method)); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, keyMethod, err)
	}

	if _, err := parseRebaseFallback(string(c.RebaseFallback)); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, keyRebaseFallback, err)
	}

	if err := validateStrictMode(c.Strict); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, keyStrict, err)
	}

	if _, err := parseUpdateMethod(string(c.StrictMethod)); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, keyStrictMethod, err)
	}

	if _, err := commitmsg.ParseMode(string(c.CommitMessage)); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, keyCommitMessage, err)
	}

	return nil
}

func parseMergeMethod(s string) (githubclt.MergeMethod, error) {
	switch m := githubclt.MergeMethod(s); m {
	case githubclt.MergeMethodMerge, githubclt.MergeMethodRebase, githubclt.MergeMethodSquash:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported value %q, supported: %q, %q, %q",
			s, githubclt.MergeMethodMerge, githubclt.MergeMethodRebase, githubclt.MergeMethodSquash)
	}
}

func parseRebaseFallback(s string) (RebaseFallback, error) {
	switch m := RebaseFallback(s); m {
	case RebaseFallbackMerge, RebaseFallbackSquash, RebaseFallbackNone:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported value %q, supported: %q, %q, %q",
			s, RebaseFallbackMerge, RebaseFallbackSquash, RebaseFallbackNone)
	}
}

func parseUpdateMethod(s string) (githubclt.UpdateMethod, error) {
	switch m := githubclt.UpdateMethod(s); m {
	case githubclt.UpdateMethodMerge, githubclt.UpdateMethodRebase:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported value %q, supported: %q, %q",
			s, githubclt.UpdateMethodMerge, githubclt.UpdateMethodRebase)
	}
}

// parseStrict converts the configuration value of the strict key to a
// StrictMode. Only a bool or the string "smart" are accepted.
func parseStrict(v any) (StrictMode, error) {
	switch val := v.(type) {
	case bool:
		if val {
			return StrictOn, nil
		}
		return StrictOff, nil

	case string:
		if StrictMode(val) == StrictSmart {
			return StrictSmart, nil
		}
	}

	return "", fmt.Errorf("unsupported value %v, supported: true, false, %q", v, StrictSmart)
}

func validateStrictMode(m StrictMode) error {
	switch m {
	case StrictOff, StrictOn, StrictSmart:
		return nil
	}

	return fmt.Errorf("unsupported strict mode %q", m)
}
