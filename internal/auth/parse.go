package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedPermissions is returned when stored permission text cannot be read in any known format.
var ErrMalformedPermissions = errors.New("malformed permission list")

var permissionKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParsePermissions reads permission text as stored on a role. Formats found in
// the wild are tried in order until one yields only well-formed keys: a JSON
// array, a legacy line list ("---\n- :view_issues\n- :add_issues"), a comma
// separated list, and finally the whole text as a single key.
func ParsePermissions(raw string) (PermissionSet, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return NewPermissionSet(), nil
	}

	tiers := []func(string) ([]string, bool){jsonKeys, lineKeys, commaKeys, wholeKey}
	for _, tier := range tiers {
		keys, ok := tier(text)
		if !ok {
			continue
		}
		if set, err := validKeys(keys); err == nil {
			return set, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMalformedPermissions, text)
}

func jsonKeys(text string) ([]string, bool) {
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}
	var keys []string
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		return nil, false
	}
	return keys, true
}

func lineKeys(text string) ([]string, bool) {
	var keys []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "---" {
			continue
		}
		keys = append(keys, strings.TrimLeft(line, "-: \t"))
	}
	return keys, true
}

func commaKeys(text string) ([]string, bool) {
	if !strings.Contains(text, ",") {
		return nil, false
	}
	return strings.Split(text, ","), true
}

func wholeKey(text string) ([]string, bool) {
	return []string{text}, true
}

func validKeys(keys []string) (PermissionSet, error) {
	set := NewPermissionSet()
	for _, k := range keys {
		k = strings.Trim(strings.TrimSpace(k), `"'`)
		if k == "" {
			continue
		}
		if !permissionKeyPattern.MatchString(k) {
			return nil, fmt.Errorf("%w: bad key %q", ErrMalformedPermissions, k)
		}
		set.Add(Permission(k))
	}
	return set, nil
}

// FormatPermissions renders perms in the canonical JSON array form used for new writes.
func FormatPermissions(perms []Permission) string {
	keys := make([]string, 0, len(perms))
	seen := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		keys = append(keys, string(p))
	}
	b, _ := json.Marshal(keys)
	return string(b)
}
