package todo

import "strings"

// Shares is the set of identities a list is shared with. Order is first occurrence and carries no
// meaning beyond making fan-out deterministic.
type Shares []string

// ParseShares splits the stored comma separated form, trims entries and drops empties and duplicates.
func ParseShares(raw string) Shares {
	out := Shares{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

// String is the canonical stored form.
func (s Shares) String() string {
	return strings.Join(s, ",")
}

// Contains is an exact, case-sensitive membership test.
func (s Shares) Contains(identity string) bool {
	for _, v := range s {
		if v == identity {
			return true
		}
	}
	return false
}

// Added returns the identities in s that are not in old.
func (s Shares) Added(old Shares) []string {
	var out []string
	for _, v := range s {
		if !old.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

// Removed returns the identities in old that are no longer in s.
func (s Shares) Removed(old Shares) []string {
	return old.Added(s)
}
