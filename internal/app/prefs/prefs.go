/*
Package prefs keeps the visitor's delivery or pickup choice per seller.

The map is persisted in the device's local store and outlives sessions: logging out does
not clear it.
*/
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"storefront/internal/app/localstore"
	"storefront/internal/pkg/errs"
)

// Key is the local store key of the preference map.
const Key = "storefront:delivery-preferences"

// Method is how an order from a seller reaches the buyer.
type Method string

const (
	MethodDelivery Method = "delivery"
	MethodPickup   Method = "pickup"
)

// Store reads and writes the preference map.
type Store struct {
	local localstore.Store
	mu    sync.Mutex
}

// NewStore constructs a Store over local.
func NewStore(local localstore.Store) *Store {
	return &Store{local: local}
}

// Get returns the method chosen for sellerID, delivery when none was chosen.
func (s *Store) Get(ctx context.Context, sellerID string) (Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return MethodDelivery, err
	}
	if m, ok := all[sellerID]; ok {
		return m, nil
	}
	return MethodDelivery, nil
}

// Set records method for sellerID.
func (s *Store) Set(ctx context.Context, sellerID string, method Method) error {
	if sellerID == "" {
		return errs.NewError(errs.ErrValidation, "seller id is required")
	}
	if method != MethodDelivery && method != MethodPickup {
		return errs.NewError(errs.ErrValidation, fmt.Sprintf("unknown delivery method %q", method))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	all[sellerID] = method

	raw, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to encode delivery preferences: %w", err)
	}
	if err := s.local.Set(ctx, Key, string(raw)); err != nil {
		return fmt.Errorf("failed to persist delivery preferences: %w", err)
	}
	return nil
}

// All returns a copy of every recorded choice.
func (s *Store) All(ctx context.Context) (map[string]Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return maps.Clone(all), nil
}

// load reads the map. A corrupt document is treated as empty.
func (s *Store) load(ctx context.Context) (map[string]Method, error) {
	raw, ok, err := s.local.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read delivery preferences: %w", err)
	}

	all := map[string]Method{}
	if !ok || raw == "" {
		return all, nil
	}
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return map[string]Method{}, nil
	}
	return all, nil
}
