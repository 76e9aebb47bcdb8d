package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	r, ok := Parse(" Seller ")
	assert.True(t, ok)
	assert.Equal(t, Seller, r)

	_, ok = Parse("superuser")
	assert.False(t, ok)
}

func TestSetPredicates(t *testing.T) {
	s := NewSet(Buyer, Seller)

	assert.True(t, s.Has(Buyer))
	assert.False(t, s.Has(Admin))
	assert.True(t, s.HasAny(Admin, Seller))
	assert.False(t, s.HasAny(Admin, Helper))
	assert.True(t, s.HasAll(Buyer, Seller))
	assert.False(t, s.HasAll(Buyer, Admin))
	assert.True(t, s.HasAll())
	assert.Equal(t, []Role{Buyer, Seller}, NewSet(Seller, Buyer).Sorted())
}

func TestNavigationDeduplicatesByRoute(t *testing.T) {
	nav := Navigation(NewSet(Buyer, Seller, Deliverer))

	seen := map[string]int{}
	for _, e := range nav {
		seen[e.Route]++
	}
	for route, n := range seen {
		assert.Equal(t, 1, n, route)
	}
	assert.Contains(t, nav, NavEntry{Route: "/seller/products", Label: "My products"})
	assert.Contains(t, nav, NavEntry{Route: "/delivery/jobs", Label: "Delivery jobs"})
	assert.Equal(t, "/account/orders", nav[0].Route)
}

func TestNavigationEmptySet(t *testing.T) {
	assert.Empty(t, Navigation(Set{}))
}

type mockRepo struct {
	RolesForFunc func(ctx context.Context, userID string) ([]string, error)
}

func (m *mockRepo) RolesFor(ctx context.Context, userID string) ([]string, error) {
	return m.RolesForFunc(ctx, userID)
}

func TestResolverRolesOf(t *testing.T) {
	repo := &mockRepo{
		RolesForFunc: func(ctx context.Context, userID string) ([]string, error) {
			switch userID {
			case "u-1":
				return []string{"buyer", "admin", "wizard"}, nil
			case "u-broken":
				return nil, errors.New("db down")
			}
			return nil, nil
		},
	}
	r := NewResolver(repo)

	assert.Equal(t, NewSet(Buyer, Admin), r.RolesOf(context.Background(), "u-1"))
	assert.Empty(t, r.RolesOf(context.Background(), "u-unknown"))
	assert.Empty(t, r.RolesOf(context.Background(), "u-broken"))
	assert.Empty(t, r.RolesOf(context.Background(), ""))
}

func TestResolverSkipsRepositoryForEmptyID(t *testing.T) {
	called := false
	r := NewResolver(&mockRepo{
		RolesForFunc: func(ctx context.Context, userID string) ([]string, error) {
			called = true
			return nil, nil
		},
	})

	r.RolesOf(context.Background(), "")
	assert.False(t, called)
}

type staticSource struct{ set Set }

func (s *staticSource) CurrentRoles() Set { return s.set }

func TestAuthorizerFollowsCurrentSession(t *testing.T) {
	src := &staticSource{set: NewSet(Seller)}
	a := NewAuthorizer(src)

	assert.True(t, a.HasRole(Seller))
	assert.False(t, a.CanAccessAdmin())
	assert.True(t, a.HasAnyRole(Admin, Seller))
	assert.False(t, a.HasAllRoles(Admin, Seller))

	src.set = NewSet(Admin, Seller)
	assert.True(t, a.CanAccessAdmin())
	assert.True(t, a.HasAllRoles(Admin, Seller))
	assert.Contains(t, a.Navigation(), NavEntry{Route: "/admin", Label: "Admin dashboard"})

	src.set = Set{}
	assert.False(t, a.HasAnyRole(All...))
	assert.Empty(t, a.Navigation())
}
