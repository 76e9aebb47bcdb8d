/*
Package localstore persists the small amount of tab state that must survive a reload:
the session rehydration token and the per-seller delivery preferences.

State is scoped by a stable device id supplied by the browser, so every tab of the same
browser sees the same values, the way browser local storage behaves.
*/
package localstore

import (
	"context"
	"errors"
)

// Store is a namespaced string key/value store for one device.
type Store interface {
	// Get returns the value stored under key. ok is false when nothing is stored.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key until it is explicitly deleted.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Factory opens the Store of a device.
type Factory interface {
	ForDevice(deviceID string) (Store, error)
}

// ErrInvalidDeviceID is returned by factories for an empty or malformed device id.
var ErrInvalidDeviceID = errors.New("invalid device id")

// validDeviceID accepts the ids produced by the storefront frontend: 8 to 64 characters
// of letters, digits, '-' and '_'.
func validDeviceID(id string) bool {
	if len(id) < 8 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
