// Package scope holds the set arithmetic used when validating and granting
// consent scopes. Scope names are opaque, case-sensitive strings.
package scope

import "strings"

// Parse splits a whitespace-delimited scope string. Duplicates are collapsed
// and the order of first appearance is kept.
func Parse(s string) []string {
	return Normalize(strings.Fields(s))
}

// Normalize drops empty entries and duplicates from a list, keeping order.
func Normalize(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, sc := range scopes {
		sc = strings.TrimSpace(sc)
		if sc == "" {
			continue
		}
		if _, ok := seen[sc]; ok {
			continue
		}
		seen[sc] = struct{}{}
		out = append(out, sc)
	}
	return out
}

// Join renders scopes in the space-delimited wire form.
func Join(scopes []string) string {
	return strings.Join(scopes, " ")
}

// Partition splits requested into the entries present in allowed and the
// entries that are not.
func Partition(allowed, requested []string) (valid, rejected []string) {
	index := toSet(allowed)
	valid = []string{}
	rejected = []string{}
	for _, sc := range requested {
		if _, ok := index[sc]; ok {
			valid = append(valid, sc)
		} else {
			rejected = append(rejected, sc)
		}
	}
	return valid, rejected
}

// Missing returns the entries of required that are absent from have.
func Missing(required, have []string) []string {
	index := toSet(have)
	var out []string
	for _, sc := range required {
		if _, ok := index[sc]; !ok {
			out = append(out, sc)
		}
	}
	return out
}

// Subset reports whether every entry of sub is in super.
func Subset(sub, super []string) bool {
	return len(Missing(sub, super)) == 0
}

// Union returns a followed by the entries of b not already in a.
func Union(a, b []string) []string {
	return Normalize(append(append([]string{}, a...), b...))
}

func toSet(scopes []string) map[string]struct{} {
	m := make(map[string]struct{}, len(scopes))
	for _, sc := range scopes {
		m[sc] = struct{}{}
	}
	return m
}
