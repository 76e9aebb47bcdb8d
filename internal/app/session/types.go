/*
Package session holds the Session Store of a tab: the single source of truth for whether
the visitor is authenticated, who they are and which roles they hold.

The store moves through uninitialized → loading → {authenticated, anonymous}, persists a
rehydration token in the device's local store and publishes every transition, in commit
order, to its subscribers.
*/
package session

import (
	"context"

	"storefront/internal/app/roles"
)

// State is the lifecycle state of a Session Store.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// TokenKey is the local store key holding the rehydration token.
const TokenKey = "storefront:session:token"

// User is the authenticated visitor. A User is never modified after it has been installed
// in a store; changes install a new value.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	Roles         roles.Set
}

// Credentials are the email and password submitted by the auth modal.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is the account as reported by the identity service.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// Grant is the outcome of a successful login or signup.
type Grant struct {
	Token    string   `json:"token"`
	Identity Identity `json:"user"`
}

// IdentityService is the remote authority for credentials and sessions.
type IdentityService interface {
	Login(ctx context.Context, creds Credentials) (*Grant, error)
	Signup(ctx context.Context, creds Credentials) (*Grant, error)
	Logout(ctx context.Context, token string) error
	// CurrentSession returns the identity behind token, or nil when the session no longer exists.
	CurrentSession(ctx context.Context, token string) (*Identity, error)
}

// RoleResolver derives the role set of a user id.
type RoleResolver interface {
	RolesOf(ctx context.Context, userID string) roles.Set
}

// Cause names what led to a transition.
type Cause string

const (
	CauseInitialize Cause = "initialize"
	CauseLogin      Cause = "login"
	CauseSignup     Cause = "signup"
	CauseLogout     Cause = "logout"
	CauseRefresh    Cause = "refresh"
	CauseExpired    Cause = "expired"
)

// Transition is published for every committed change of the store.
// A refresh of an authenticated user publishes From == To == StateAuthenticated.
type Transition struct {
	From  State
	To    State
	User  *User
	Cause Cause
}

// EnteredAuthenticated reports a transition from a non-authenticated state into authenticated.
func (t Transition) EnteredAuthenticated() bool {
	return t.To == StateAuthenticated && t.From != StateAuthenticated
}

// Snapshot is a consistent view of the store. Token belongs to User and is empty
// unless the store is authenticated.
type Snapshot struct {
	State State
	User  *User
	Token string
}
