package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"storefront/internal/app/localstore"
	"storefront/internal/app/roles"
	"storefront/internal/pkg/auth/jwt"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/logx"
	"storefront/internal/pkg/notify"
)

// revokeTimeout bounds the background invalidation of a superseded login's session.
const revokeTimeout = 10 * time.Second

// Store is the Session Store of one tab.
type Store struct {
	identity IdentityService
	resolver RoleResolver
	local    localstore.Store

	// mu protects state, user, token and intent.
	mu    sync.Mutex
	state State
	user  *User
	token string

	// intent is bumped by every login, signup and logout. An operation whose intent is no
	// longer current when its remote call returns must not commit.
	intent uint64

	// persistMu serialises writes of the rehydration token.
	persistMu sync.Mutex

	initGroup singleflight.Group
	events    notify.Broadcaster[Transition]

	now    func() time.Time
	logger zerolog.Logger
}

// NewStore constructs an uninitialized Store.
func NewStore(identity IdentityService, resolver RoleResolver, local localstore.Store) *Store {
	return &Store{
		identity: identity,
		resolver: resolver,
		local:    local,
		state:    StateUninitialized,
		now:      time.Now,
		logger:   logx.Component("SessionStore"),
	}
}

// Subscribe registers fn for every committed transition, in commit order.
func (s *Store) Subscribe(fn func(Transition)) (unsubscribe func()) {
	return s.events.Subscribe(fn)
}

// Snapshot returns the current state, user and token.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, User: s.user, Token: s.token}
}

// Token returns the session token of the authenticated user, or "" otherwise.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// CurrentRoles returns the roles of the authenticated user, or the empty set.
func (s *Store) CurrentRoles() roles.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated || s.user == nil {
		return roles.Set{}
	}
	return s.user.Roles
}

// Initialize rehydrates the session from the persisted token. It runs at most once per
// store; concurrent callers wait for the same run and later calls return immediately.
// Any failure leaves the store anonymous.
func (s *Store) Initialize(ctx context.Context) {
	_, _, _ = s.initGroup.Do("initialize", func() (any, error) {
		s.initialize(ctx)
		return nil, nil
	})
}

func (s *Store) initialize(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return
	}
	intent := s.intent
	s.commitLocked(StateLoading, nil, "", CauseInitialize)
	s.mu.Unlock()
	s.events.Flush()

	token, ok, err := s.local.Get(ctx, TokenKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read persisted session token.")
	}
	if err != nil || !ok || token == "" {
		s.settleAnonymous(intent, CauseInitialize)
		return
	}

	if !jwt.Usable(token, s.now()) {
		s.logger.Info().Msg("Persisted session token expired, discarding it.")
		s.forgetToken(ctx, intent)
		s.settleAnonymous(intent, CauseExpired)
		return
	}

	identity, err := s.identity.CurrentSession(ctx, token)
	if err != nil {
		// The token is kept: a later reload may still be able to rehydrate it.
		s.logger.Warn().Err(err).Msg("Session rehydration failed, continuing anonymously.")
		s.settleAnonymous(intent, CauseInitialize)
		return
	}
	if identity == nil {
		s.forgetToken(ctx, intent)
		s.settleAnonymous(intent, CauseExpired)
		return
	}

	user := s.buildUser(ctx, identity)

	s.mu.Lock()
	if s.intent != intent {
		// A login or logout started while loading; it owns the outcome.
		s.mu.Unlock()
		return
	}
	s.commitLocked(StateAuthenticated, user, token, CauseInitialize)
	s.mu.Unlock()
	s.events.Flush()
}

// settleAnonymous moves a store that is still loading for intent into anonymous.
func (s *Store) settleAnonymous(intent uint64, cause Cause) {
	s.mu.Lock()
	if s.intent != intent || s.state != StateLoading {
		s.mu.Unlock()
		return
	}
	s.commitLocked(StateAnonymous, nil, "", cause)
	s.mu.Unlock()
	s.events.Flush()
}

// Login authenticates creds against the identity service and installs the resulting user.
// If a logout or a newer login happened while the call was in flight, the result is
// discarded, the orphaned remote session is invalidated and ErrLoginSuperseded is returned.
func (s *Store) Login(ctx context.Context, creds Credentials) (*User, error) {
	return s.authenticate(ctx, creds, CauseLogin, s.identity.Login)
}

// Signup registers creds with the identity service and installs the new user like Login.
func (s *Store) Signup(ctx context.Context, creds Credentials) (*User, error) {
	return s.authenticate(ctx, creds, CauseSignup, s.identity.Signup)
}

func (s *Store) authenticate(
	ctx context.Context,
	creds Credentials,
	cause Cause,
	call func(context.Context, Credentials) (*Grant, error),
) (*User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, errs.NewError(errs.ErrValidation, "email and password are required")
	}

	s.mu.Lock()
	s.intent++
	intent := s.intent
	s.mu.Unlock()

	grant, err := call(ctx, creds)
	if err != nil {
		return nil, authFailure(err)
	}
	if grant == nil || grant.Token == "" || grant.Identity.ID == "" {
		return nil, errs.Wrap(errs.ErrAuthRemoteFault, errors.New("identity service returned an incomplete grant"))
	}

	user := s.buildUser(ctx, &grant.Identity)

	s.mu.Lock()
	if s.intent != intent {
		s.mu.Unlock()
		s.logger.Info().Str("cause", string(cause)).Msg("Authentication resolved after being superseded, discarding it.")
		go s.revoke(grant.Token)
		return nil, errs.NewError(errs.ErrLoginSuperseded)
	}
	s.commitLocked(StateAuthenticated, user, grant.Token, cause)
	s.mu.Unlock()

	s.persistToken(ctx, intent, grant.Token)
	s.events.Flush()

	return user, nil
}

// Logout ends the session locally, then asks the identity service to invalidate it.
// The store is anonymous when Logout returns, regardless of the remote outcome.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.intent++
	intent := s.intent
	token := s.token
	if s.state != StateAnonymous {
		s.commitLocked(StateAnonymous, nil, "", CauseLogout)
	}
	s.mu.Unlock()
	s.events.Flush()

	s.forgetToken(ctx, intent)

	if token == "" {
		return
	}
	if err := s.identity.Logout(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("Remote logout failed; local session already ended.")
	}
}

// Refresh re-reads the authenticated user from the identity service, for example after
// the e-mail address was verified. It is a no-op unless the store is authenticated.
// A session that no longer exists remotely moves the store to anonymous.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil
	}
	intent := s.intent
	token := s.token
	s.mu.Unlock()

	identity, err := s.identity.CurrentSession(ctx, token)
	if err != nil {
		if errs.CodeOf(err) == errs.ErrUnknown {
			return errs.Wrap(errs.ErrRemoteUnavailable, err)
		}
		return err
	}

	if identity == nil {
		s.mu.Lock()
		if s.intent != intent || s.state != StateAuthenticated {
			s.mu.Unlock()
			return nil
		}
		s.intent++
		intent = s.intent
		s.commitLocked(StateAnonymous, nil, "", CauseExpired)
		s.mu.Unlock()
		s.events.Flush()
		s.forgetToken(ctx, intent)
		return nil
	}

	user := s.buildUser(ctx, identity)

	s.mu.Lock()
	if s.intent != intent || s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil
	}
	s.commitLocked(StateAuthenticated, user, token, CauseRefresh)
	s.mu.Unlock()
	s.events.Flush()

	return nil
}

// commitLocked installs the new state and queues its transition. Callers hold mu and
// flush the broadcaster after unlocking.
func (s *Store) commitLocked(to State, user *User, token string, cause Cause) {
	from := s.state
	s.state = to
	s.user = user
	s.token = token
	s.events.Enqueue(Transition{From: from, To: to, User: user, Cause: cause})
}

func (s *Store) buildUser(ctx context.Context, identity *Identity) *User {
	return &User{
		ID:            identity.ID,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Roles:         s.resolver.RolesOf(ctx, identity.ID),
	}
}

// persistToken stores token if intent is still current.
func (s *Store) persistToken(ctx context.Context, intent uint64, token string) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if !s.intentCurrent(intent) {
		return
	}
	if err := s.local.Set(ctx, TokenKey, token); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist session token; session will not survive a reload.")
	}
}

// forgetToken removes the persisted token if intent is still current.
func (s *Store) forgetToken(ctx context.Context, intent uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if !s.intentCurrent(intent) {
		return
	}
	if err := s.local.Delete(ctx, TokenKey); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to delete persisted session token.")
	}
}

func (s *Store) intentCurrent(intent uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intent == intent
}

// revoke invalidates the remote session of a discarded login.
func (s *Store) revoke(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), revokeTimeout)
	defer cancel()

	if err := s.identity.Logout(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate superseded session.")
	}
}

// authFailure maps an identity service error onto an AuthenticationFailed kind.
func authFailure(err error) error {
	if errs.IsAuthenticationFailure(err) {
		return err
	}
	return errs.Wrap(errs.ErrAuthRemoteFault, err)
}
