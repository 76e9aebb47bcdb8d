/*
Package tab hosts the storefront core for one browser tab.

Each WebSocket connection gets its own Core: one Session Store, Auth Modal Coordinator,
Cart Store, Cart-Action Adapter, Authorizer and preference store, wired together through
their subscriptions. The Client pumps intents from the tab into the Core and pushes the
resulting state changes back.
*/
package tab

import (
	"storefront/internal/app/authmodal"
	"storefront/internal/app/cart"
	"storefront/internal/app/cartaction"
	"storefront/internal/app/localstore"
	"storefront/internal/app/prefs"
	"storefront/internal/app/roles"
	"storefront/internal/app/session"
)

// Deps are the collaborators shared by every tab.
type Deps struct {
	Identity session.IdentityService
	Roles    session.RoleResolver
	Carts    cart.Service
	Locals   localstore.Factory
}

// Observer receives every change of a Core, in commit order.
type Observer interface {
	authmodal.Navigator
	SessionChanged(tr session.Transition)
	ModalChanged(state authmodal.State)
	CartChanged(view cart.View)
}

// Core is the set of stores of one tab.
type Core struct {
	Session    *session.Store
	Modal      *authmodal.Coordinator
	Cart       *cart.Store
	Actions    *cartaction.Adapter
	Authorizer *roles.Authorizer
	Prefs      *prefs.Store

	detach []func()
}

// NewCore builds the stores of a tab over local and wires their reactions.
// obs sees each session transition first. The cart follows the new user before the modal
// navigates, so a tab acting on the navigation finds the cart ready for writes.
func NewCore(deps Deps, local localstore.Store, obs Observer) *Core {
	sess := session.NewStore(deps.Identity, deps.Roles, local)
	modal := authmodal.NewCoordinator(obs)
	c := cart.NewStore(deps.Carts, sess)

	core := &Core{
		Session:    sess,
		Modal:      modal,
		Cart:       c,
		Actions:    cartaction.NewAdapter(sess, c, modal),
		Authorizer: roles.NewAuthorizer(sess),
		Prefs:      prefs.NewStore(local),
	}

	core.detach = append(core.detach,
		sess.Subscribe(obs.SessionChanged),
		c.Attach(),
		modal.Attach(sess),
		modal.Subscribe(obs.ModalChanged),
		c.Subscribe(obs.CartChanged),
	)

	return core
}

// Close removes every subscription of the core.
func (c *Core) Close() {
	for _, detach := range c.detach {
		detach()
	}
	c.detach = nil
}
