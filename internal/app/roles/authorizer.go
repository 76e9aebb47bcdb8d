package roles

// Source exposes the role set of the currently active session.
type Source interface {
	// CurrentRoles returns the roles of the authenticated user, or the empty set when anonymous.
	CurrentRoles() Set
}

// Authorizer answers role questions about the current session only. It deliberately takes
// no user id so an unrelated identity can never be checked in place of the active one.
type Authorizer struct {
	src Source
}

// NewAuthorizer binds an Authorizer to the session exposed by src.
func NewAuthorizer(src Source) *Authorizer {
	return &Authorizer{src: src}
}

// HasRole reports whether the current user holds r.
func (a *Authorizer) HasRole(r Role) bool {
	return a.src.CurrentRoles().Has(r)
}

// HasAnyRole reports whether the current user holds at least one of rs.
func (a *Authorizer) HasAnyRole(rs ...Role) bool {
	return a.src.CurrentRoles().HasAny(rs...)
}

// HasAllRoles reports whether the current user holds every one of rs.
func (a *Authorizer) HasAllRoles(rs ...Role) bool {
	return a.src.CurrentRoles().HasAll(rs...)
}

// CanAccessAdmin reports whether the admin surface is visible for the current user.
func (a *Authorizer) CanAccessAdmin() bool {
	return a.HasRole(Admin)
}

// Navigation returns the deduplicated navigation entries of the current user.
func (a *Authorizer) Navigation() []NavEntry {
	return Navigation(a.src.CurrentRoles())
}
