package storage

import (
	"errors"
	"maps"
)

// CopyMap returns a shallow copy of m that is never nil.
func CopyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	maps.Copy(out, m)
	return out
}

// Diff returns the keys whose value must be written and the keys that must be
// deleted to turn current into next.
func Diff(current, next map[string]string) (set map[string]string, del []string) {
	set = make(map[string]string)
	for k, v := range next {
		if old, ok := current[k]; !ok || old != v {
			set[k] = v
		}
	}
	for k := range current {
		if _, ok := next[k]; !ok {
			del = append(del, k)
		}
	}
	return set, del
}

// Apply runs fn against a copy of current. It reports changed=false when fn
// returned ErrNoChange or produced an identical mapping, so callers can skip
// the write entirely.
func Apply(current map[string]string, fn Transform) (next map[string]string, changed bool, err error) {
	next, err = fn(CopyMap(current))
	if errors.Is(err, ErrNoChange) {
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if next == nil {
		next = map[string]string{}
	}
	return next, !maps.Equal(current, next), nil
}
