/*
Package roles resolves the authorization roles of a storefront user and derives the
role-based navigation and admin-surface visibility from them.

Role assignments are made outside the storefront and are only ever read here. A user may
hold several roles at once; the visible navigation is the union of every held role's entries.
*/
package roles

import (
	"slices"
	"strings"
)

// Role is a named capability grouping.
type Role string

const (
	Buyer     Role = "buyer"
	Seller    Role = "seller"
	Deliverer Role = "deliverer"
	Helper    Role = "helper"
	Admin     Role = "admin"
)

// All lists every known role in a fixed order.
var All = []Role{Buyer, Seller, Deliverer, Helper, Admin}

// Parse converts a stored role name into a Role. Unknown names report false.
func Parse(name string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(All, r) {
		return r, true
	}
	return "", false
}

// Set is an immutable-by-convention set of roles.
type Set map[Role]struct{}

// NewSet builds a set from the given roles.
func NewSet(rs ...Role) Set {
	s := make(Set, len(rs))
	for _, r := range rs {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether r is in the set.
func (s Set) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// HasAny reports whether at least one of rs is in the set.
func (s Set) HasAny(rs ...Role) bool {
	for _, r := range rs {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of rs is in the set. An empty list is trivially held.
func (s Set) HasAll(rs ...Role) bool {
	for _, r := range rs {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// Sorted returns the roles of the set in the order of All.
func (s Set) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range All {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}
