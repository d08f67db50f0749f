package models

import (
	"sort"
	"strings"
)

// ValidationErrors maps a request field to a user-facing message.
// It doubles as an error so services can reject input found invalid after a remote check.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// OrNil returns nil when there are no field errors so callers can write `if err := req.Validate(); err != nil`.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
