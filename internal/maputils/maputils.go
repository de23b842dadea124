package maputils

import (
	"fmt"
	"sort"
	"strings"
)

// StrVal returns the value of the key as string.
// If the key does not exist, ok is false.
// If they key exist but has a different type an error is returned.
func StrVal(m map[string]any, key string) (val string, ok bool, err error) {
	v, exist := m[key]
	if !exist {
		return "", false, nil
	}

	str, isStr := v.(string)
	if !isStr {
		return "", false, fmt.Errorf("value of key %q has type %T, expected string", key, v)
	}

	return str, true, nil
}

// BoolOrStrVal returns the value of the key, it must either be a bool or a
// string.
// If the key does not exist, nil is returned.
func BoolOrStrVal(m map[string]any, key string) (any, error) {
	v, exist := m[key]
	if !exist {
		return nil, nil
	}

	switch v.(type) {
	case bool, string:
		return v, nil
	default:
		return nil, fmt.Errorf("value of key %q has type %T, expected bool or string", key, v)
	}
}

// UnknownKeys returns the sorted keys of m that are not in known.
func UnknownKeys(m map[string]any, known ...string) []string {
	var result []string

	for k := range m {
		var found bool
		for _, kn := range known {
			if k == kn {
				found = true
				break
			}
		}

		if !found {
			result = append(result, k)
		}
	}

	sort.Strings(result)

	return result
}

// RejectUnknownKeys returns an error listing all keys of m that are not in
// known.
func RejectUnknownKeys(m map[string]any, known ...string) error {
	unknown := UnknownKeys(m, known...)
	if len(unknown) == 0 {
		return nil
	}

	return fmt.Errorf("unsupported keys: %s", strings.Join(unknown, ", "))
}
