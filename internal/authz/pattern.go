package authz

import "strings"

// Matches reports whether a held permission pattern grants the requested
// permission name. The rule cascade is ordered and first match wins:
//
//  1. exact equality
//  2. the super wildcard "*"
//  3. a two-segment "module.*" pattern matches any name under that module
//  4. equal segment counts with "*" standing in for single segments
//
// The module wildcard is deliberately special-cased at exactly two pattern
// segments. Generalising it to a suffix match would over-grant, e.g.
// "platform.*" against a four-segment name.
func Matches(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if pattern == "*" {
		return true
	}

	patternSegs := strings.Split(pattern, ".")
	if len(patternSegs) == 2 && patternSegs[1] == "*" {
		return strings.HasPrefix(name, patternSegs[0]+".")
	}

	nameSegs := strings.Split(name, ".")
	if len(patternSegs) != len(nameSegs) {
		return false
	}
	for i, seg := range patternSegs {
		if seg != "*" && seg != nameSegs[i] {
			return false
		}
	}
	return true
}

// NameParts holds the components of a canonical permission name.
type NameParts struct {
	Module   string
	Resource string
	Action   string
}

// ValidatePermissionName reports whether name has exactly three non-empty
// dot-delimited segments.
func ValidatePermissionName(name string) bool {
	return ParsePermissionName(name) != nil
}

// ParsePermissionName splits a canonical permission name into its parts.
// Returns nil on malformed input instead of an error.
func ParsePermissionName(name string) *NameParts {
	segs := strings.Split(name, ".")
	if len(segs) != 3 {
		return nil
	}
	for _, seg := range segs {
		if seg == "" {
			return nil
		}
	}
	return &NameParts{Module: segs[0], Resource: segs[1], Action: segs[2]}
}
