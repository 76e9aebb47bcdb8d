package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/app/roles"
	"storefront/internal/pkg/errs"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeIdentity struct {
	LoginFunc          func(ctx context.Context, creds Credentials) (*Grant, error)
	SignupFunc         func(ctx context.Context, creds Credentials) (*Grant, error)
	LogoutFunc         func(ctx context.Context, token string) error
	CurrentSessionFunc func(ctx context.Context, token string) (*Identity, error)
}

func (f *fakeIdentity) Login(ctx context.Context, creds Credentials) (*Grant, error) {
	return f.LoginFunc(ctx, creds)
}

func (f *fakeIdentity) Signup(ctx context.Context, creds Credentials) (*Grant, error) {
	return f.SignupFunc(ctx, creds)
}

func (f *fakeIdentity) Logout(ctx context.Context, token string) error {
	if f.LogoutFunc == nil {
		return nil
	}
	return f.LogoutFunc(ctx, token)
}

func (f *fakeIdentity) CurrentSession(ctx context.Context, token string) (*Identity, error) {
	return f.CurrentSessionFunc(ctx, token)
}

type fixedRoles map[string]roles.Set

func (f fixedRoles) RolesOf(_ context.Context, userID string) roles.Set {
	if s, ok := f[userID]; ok {
		return s
	}
	return roles.Set{}
}

func sessionToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.StandardClaims{
		Subject:   "u-1",
		ExpiresAt: exp.Unix(),
	}).SignedString([]byte("remote-secret"))
	require.NoError(t, err)
	return token
}

func record(s *Store) func() []Transition {
	var mu sync.Mutex
	var got []Transition
	s.Subscribe(func(tr Transition) {
		mu.Lock()
		got = append(got, tr)
		mu.Unlock()
	})
	return func() []Transition {
		mu.Lock()
		defer mu.Unlock()
		return append([]Transition(nil), got...)
	}
}

var ada = Identity{ID: "u-1", Email: "ada@example.com", EmailVerified: true}

func TestInitializeWithoutTokenBecomesAnonymous(t *testing.T) {
	identity := &fakeIdentity{CurrentSessionFunc: func(context.Context, string) (*Identity, error) {
		t.Fatal("no remote call expected without a persisted token")
		return nil, nil
	}}
	store := NewStore(identity, fixedRoles{}, newMemoryStore())
	transitions := record(store)

	store.Initialize(context.Background())

	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	got := transitions()
	require.Len(t, got, 2)
	assert.Equal(t, StateLoading, got[0].To)
	assert.Equal(t, StateAnonymous, got[1].To)
}

func TestInitializeRehydratesOnceWithRoles(t *testing.T) {
	local := newMemoryStore()
	token := sessionToken(t, time.Now().Add(time.Hour))
	require.NoError(t, local.Set(context.Background(), TokenKey, token))

	var calls atomic.Int32
	release := make(chan struct{})
	identity := &fakeIdentity{CurrentSessionFunc: func(_ context.Context, got string) (*Identity, error) {
		calls.Add(1)
		assert.Equal(t, token, got)
		<-release
		return &ada, nil
	}}
	store := NewStore(identity, fixedRoles{"u-1": roles.NewSet(roles.Buyer, roles.Seller)}, local)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Initialize(context.Background())
		}()
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	store.Initialize(context.Background())
	assert.EqualValues(t, 1, calls.Load())

	snap := store.Snapshot()
	require.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "ada@example.com", snap.User.Email)
	assert.True(t, store.CurrentRoles().HasAll(roles.Buyer, roles.Seller))
	assert.Equal(t, token, store.Token())
}

func TestInitializeDiscardsExpiredTokenLocally(t *testing.T) {
	local := newMemoryStore()
	require.NoError(t, local.Set(context.Background(), TokenKey, sessionToken(t, time.Now().Add(-time.Hour))))

	identity := &fakeIdentity{CurrentSessionFunc: func(context.Context, string) (*Identity, error) {
		t.Fatal("expired token must not be sent to the identity service")
		return nil, nil
	}}
	store := NewStore(identity, fixedRoles{}, local)
	transitions := record(store)

	store.Initialize(context.Background())

	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	_, ok, _ := local.Get(context.Background(), TokenKey)
	assert.False(t, ok)
	got := transitions()
	assert.Equal(t, CauseExpired, got[len(got)-1].Cause)
}

func TestInitializeRemoteFailureKeepsToken(t *testing.T) {
	local := newMemoryStore()
	token := sessionToken(t, time.Now().Add(time.Hour))
	require.NoError(t, local.Set(context.Background(), TokenKey, token))

	identity := &fakeIdentity{CurrentSessionFunc: func(context.Context, string) (*Identity, error) {
		return nil, errs.NewError(errs.ErrRemoteUnavailable)
	}}
	store := NewStore(identity, fixedRoles{}, local)

	store.Initialize(context.Background())

	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	stored, ok, _ := local.Get(context.Background(), TokenKey)
	assert.True(t, ok)
	assert.Equal(t, token, stored)
}

func TestInitializeEndedSessionForgetsToken(t *testing.T) {
	local := newMemoryStore()
	require.NoError(t, local.Set(context.Background(), TokenKey, sessionToken(t, time.Now().Add(time.Hour))))

	identity := &fakeIdentity{CurrentSessionFunc: func(context.Context, string) (*Identity, error) {
		return nil, nil
	}}
	store := NewStore(identity, fixedRoles{}, local)

	store.Initialize(context.Background())

	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	_, ok, _ := local.Get(context.Background(), TokenKey)
	assert.False(t, ok)
}

func TestLoginInstallsUserAndPersistsToken(t *testing.T) {
	local := newMemoryStore()
	identity := &fakeIdentity{LoginFunc: func(_ context.Context, creds Credentials) (*Grant, error) {
		assert.Equal(t, "ada@example.com", creds.Email)
		return &Grant{Token: "tok-1", Identity: ada}, nil
	}}
	store := NewStore(identity, fixedRoles{"u-1": roles.NewSet(roles.Admin)}, local)
	transitions := record(store)

	user, err := store.Login(context.Background(), Credentials{Email: " ada@example.com ", Password: "secret"})
	require.NoError(t, err)

	assert.True(t, user.Roles.Has(roles.Admin))
	assert.Equal(t, StateAuthenticated, store.Snapshot().State)
	stored, _, _ := local.Get(context.Background(), TokenKey)
	assert.Equal(t, "tok-1", stored)

	got := transitions()
	require.Len(t, got, 1)
	assert.True(t, got[0].EnteredAuthenticated())
	assert.Equal(t, CauseLogin, got[0].Cause)
}

func TestLoginRejectsBlankCredentials(t *testing.T) {
	store := NewStore(&fakeIdentity{}, fixedRoles{}, newMemoryStore())

	_, err := store.Login(context.Background(), Credentials{Email: "  ", Password: "x"})
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

func TestLoginFailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		remote   error
		wantCode int
	}{
		{"invalid credentials", errs.NewError(errs.ErrInvalidCredentials), errs.ErrInvalidCredentials},
		{"unverified email", errs.NewError(errs.ErrEmailNotVerified), errs.ErrEmailNotVerified},
		{"remote outage", errs.NewError(errs.ErrRemoteUnavailable), errs.ErrAuthRemoteFault},
		{"unclassified", errors.New("connection reset"), errs.ErrAuthRemoteFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := &fakeIdentity{LoginFunc: func(context.Context, Credentials) (*Grant, error) {
				return nil, tt.remote
			}}
			store := NewStore(identity, fixedRoles{}, newMemoryStore())
			store.Initialize(context.Background())

			_, err := store.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
			assert.Equal(t, tt.wantCode, errs.CodeOf(err))
			assert.True(t, errs.IsAuthenticationFailure(err))
			assert.Equal(t, StateAnonymous, store.Snapshot().State)
		})
	}
}

func TestLogoutDuringLoginDiscardsLateSuccess(t *testing.T) {
	local := newMemoryStore()
	started := make(chan struct{})
	release := make(chan struct{})
	revoked := make(chan string, 1)

	identity := &fakeIdentity{
		LoginFunc: func(context.Context, Credentials) (*Grant, error) {
			close(started)
			<-release
			return &Grant{Token: "late-token", Identity: ada}, nil
		},
		LogoutFunc: func(_ context.Context, token string) error {
			revoked <- token
			return nil
		},
	}
	store := NewStore(identity, fixedRoles{}, local)
	store.Initialize(context.Background())
	transitions := record(store)

	errCh := make(chan error, 1)
	go func() {
		_, err := store.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
		errCh <- err
	}()

	<-started
	store.Logout(context.Background())
	close(release)

	err := <-errCh
	assert.True(t, errs.Is(err, errs.ErrLoginSuperseded))
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	assert.Empty(t, store.Token())
	_, ok, _ := local.Get(context.Background(), TokenKey)
	assert.False(t, ok)

	select {
	case token := <-revoked:
		assert.Equal(t, "late-token", token)
	case <-time.After(time.Second):
		t.Fatal("orphaned session was not invalidated")
	}

	for _, tr := range transitions() {
		assert.NotEqual(t, StateAuthenticated, tr.To)
	}
}

func TestLogoutClearsLocalStateFirst(t *testing.T) {
	local := newMemoryStore()
	var remoteToken string
	identity := &fakeIdentity{
		LoginFunc: func(context.Context, Credentials) (*Grant, error) {
			return &Grant{Token: "tok-1", Identity: ada}, nil
		},
		LogoutFunc: func(_ context.Context, token string) error {
			remoteToken = token
			return errs.NewError(errs.ErrRemoteUnavailable)
		},
	}
	store := NewStore(identity, fixedRoles{}, local)
	_, err := store.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	store.Logout(context.Background())

	assert.Equal(t, "tok-1", remoteToken)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	assert.False(t, store.CurrentRoles().HasAny(roles.All...))
	_, ok, _ := local.Get(context.Background(), TokenKey)
	assert.False(t, ok)
}

func TestRefreshIsNoopWhenAnonymous(t *testing.T) {
	identity := &fakeIdentity{CurrentSessionFunc: func(context.Context, string) (*Identity, error) {
		t.Fatal("refresh must not call the identity service while anonymous")
		return nil, nil
	}}
	store := NewStore(identity, fixedRoles{}, newMemoryStore())

	assert.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, StateUninitialized, store.Snapshot().State)
}

func TestRefreshReplacesUserWholesale(t *testing.T) {
	unverified := ada
	unverified.EmailVerified = false

	identity := &fakeIdentity{
		LoginFunc: func(context.Context, Credentials) (*Grant, error) {
			return &Grant{Token: "tok-1", Identity: unverified}, nil
		},
		CurrentSessionFunc: func(_ context.Context, token string) (*Identity, error) {
			assert.Equal(t, "tok-1", token)
			return &ada, nil
		},
	}
	store := NewStore(identity, fixedRoles{}, newMemoryStore())
	before, err := store.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	transitions := record(store)

	require.NoError(t, store.Refresh(context.Background()))

	after := store.Snapshot().User
	assert.False(t, before.EmailVerified)
	assert.True(t, after.EmailVerified)
	assert.NotSame(t, before, after)

	got := transitions()
	require.Len(t, got, 1)
	assert.Equal(t, StateAuthenticated, got[0].From)
	assert.Equal(t, StateAuthenticated, got[0].To)
	assert.False(t, got[0].EnteredAuthenticated())
}

func TestRefreshOfEndedSessionTurnsAnonymous(t *testing.T) {
	identity := &fakeIdentity{
		LoginFunc: func(context.Context, Credentials) (*Grant, error) {
			return &Grant{Token: "tok-1", Identity: ada}, nil
		},
		CurrentSessionFunc: func(context.Context, string) (*Identity, error) { return nil, nil },
	}
	store := NewStore(identity, fixedRoles{}, newMemoryStore())
	_, err := store.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
}

func TestRefreshSurfacesRemoteFailure(t *testing.T) {
	identity := &fakeIdentity{
		LoginFunc: func(context.Context, Credentials) (*Grant, error) {
			return &Grant{Token: "tok-1", Identity: ada}, nil
		},
		CurrentSessionFunc: func(context.Context, string) (*Identity, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	store := NewStore(identity, fixedRoles{}, newMemoryStore())
	_, err := store.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	err = store.Refresh(context.Background())
	assert.True(t, errs.Is(err, errs.ErrRemoteUnavailable))
	assert.Equal(t, StateAuthenticated, store.Snapshot().State)
}

func TestSignupInstallsUser(t *testing.T) {
	identity := &fakeIdentity{SignupFunc: func(context.Context, Credentials) (*Grant, error) {
		return &Grant{Token: "tok-new", Identity: Identity{ID: "u-9", Email: "new@example.com"}}, nil
	}}
	store := NewStore(identity, fixedRoles{}, newMemoryStore())
	transitions := record(store)

	user, err := store.Signup(context.Background(), Credentials{Email: "new@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u-9", user.ID)
	assert.Equal(t, CauseSignup, transitions()[0].Cause)
}

func TestLogoutReturnsAfterDependentsSawIt(t *testing.T) {
	identity := &fakeIdentity{LoginFunc: func(context.Context, Credentials) (*Grant, error) {
		return &Grant{Token: "tok-1", Identity: ada}, nil
	}}
	store := NewStore(identity, fixedRoles{}, newMemoryStore())

	entered := make(chan struct{})
	release := make(chan struct{})
	var sawAnonymous atomic.Bool
	store.Subscribe(func(tr Transition) {
		switch tr.To {
		case StateAuthenticated:
			close(entered)
			<-release
		case StateAnonymous:
			sawAnonymous.Store(true)
		}
	})

	loginDone := make(chan struct{})
	go func() {
		defer close(loginDone)
		_, err := store.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "secret"})
		assert.NoError(t, err)
	}()
	<-entered

	logoutDone := make(chan struct{})
	go func() {
		defer close(logoutDone)
		store.Logout(context.Background())
	}()

	assert.Never(t, func() bool {
		select {
		case <-logoutDone:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	<-logoutDone
	assert.True(t, sawAnonymous.Load())
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	<-loginDone
}
