package config

import "path/filepath"

// Allowed evaluates name against p's allow/deny glob patterns: deny
// takes precedence on a match; an empty allow list means everything not
// denied is allowed.
func (p ToolPolicy) Allowed(name string) bool {
	for _, pattern := range p.Deny {
		if matches(pattern, name) {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, pattern := range p.Allow {
		if matches(pattern, name) {
			return true
		}
	}
	return false
}

func matches(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
