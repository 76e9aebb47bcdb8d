/*
Package cartaction is the add-to-cart entry point used by product views. It either hands
the request to the Cart Store or defers it behind the authentication modal.
*/
package cartaction

import (
	"context"

	"github.com/rs/zerolog"

	"storefront/internal/app/authmodal"
	"storefront/internal/app/cart"
	"storefront/internal/app/session"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/logx"
)

// Outcome reports what happened to an add-to-cart request.
type Outcome string

const (
	// OutcomeAccepted means the request was handed to the Cart Store.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeDeferred means the visitor was asked to authenticate first. The request is not replayed.
	OutcomeDeferred Outcome = "deferred"
)

// SessionSource reports the current session state.
type SessionSource interface {
	Snapshot() session.Snapshot
}

// CartWriter adds products to the cart.
type CartWriter interface {
	AddItem(ctx context.Context, p cart.Product, quantity int) error
}

// ModalOpener opens the authentication modal.
type ModalOpener interface {
	Open(mode authmodal.Mode, returnDestination string) error
}

// Adapter routes add-to-cart requests.
type Adapter struct {
	session SessionSource
	cart    CartWriter
	modal   ModalOpener
	logger  zerolog.Logger
}

// NewAdapter constructs an Adapter.
func NewAdapter(sess SessionSource, c CartWriter, modal ModalOpener) *Adapter {
	return &Adapter{
		session: sess,
		cart:    c,
		modal:   modal,
		logger:  logx.Component("CartAction"),
	}
}

// RequestAddToCart adds quantity of p to the cart when the visitor is authenticated.
// Otherwise the login modal is opened with origin, the page the request came from, as
// its return destination and the cart is left untouched.
// Cart failures are logged and never returned: browsing must not be interrupted by a
// failed background cart write.
func (a *Adapter) RequestAddToCart(ctx context.Context, p cart.Product, quantity int, origin string) Outcome {
	if a.session.Snapshot().State != session.StateAuthenticated {
		return a.deferToLogin(origin)
	}

	err := a.cart.AddItem(ctx, p, quantity)
	switch {
	case err == nil:
	case errs.Is(err, errs.ErrNotAuthenticated):
		if a.session.Snapshot().State != session.StateAuthenticated {
			// The session ended between the check and the write.
			return a.deferToLogin(origin)
		}
		// The session switched users and the cart has not followed yet.
		a.logger.Warn().Str("product_id", p.ID).Msg("Add to cart refused while the session was changing.")
	default:
		a.logger.Warn().Err(err).Str("product_id", p.ID).Int("quantity", quantity).Msg("Add to cart failed.")
	}

	return OutcomeAccepted
}

func (a *Adapter) deferToLogin(origin string) Outcome {
	if err := a.modal.Open(authmodal.ModeLogin, origin); err != nil {
		a.logger.Error().Err(err).Msg("Failed to open login modal for deferred add to cart.")
	}
	return OutcomeDeferred
}
