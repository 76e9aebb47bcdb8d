package roles

import (
	"context"

	"github.com/rs/zerolog"

	"storefront/internal/pkg/logx"
)

// Repository reads externally persisted role assignments.
type Repository interface {
	// RolesFor returns the role names assigned to userID. An unknown user yields no roles.
	RolesFor(ctx context.Context, userID string) ([]string, error)
}

// Resolver derives the role set of a user id. It is a pure read.
type Resolver struct {
	repo   Repository
	logger zerolog.Logger
}

// NewResolver constructs a Resolver over repo.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{
		repo:   repo,
		logger: logx.Component("RoleResolver"),
	}
}

// RolesOf returns the role set of userID. An empty id, an unknown identity or a store
// failure all yield the empty set; failures are logged. Unknown role names are skipped.
func (r *Resolver) RolesOf(ctx context.Context, userID string) Set {
	if userID == "" {
		return Set{}
	}

	names, err := r.repo.RolesFor(ctx, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read role assignments, treating user as role-less.")
		return Set{}
	}

	set := make(Set, len(names))
	for _, name := range names {
		role, ok := Parse(name)
		if !ok {
			r.logger.Warn().Str("user_id", userID).Str("role", name).Msg("Ignoring unknown role assignment.")
			continue
		}
		set[role] = struct{}{}
	}
	return set
}
