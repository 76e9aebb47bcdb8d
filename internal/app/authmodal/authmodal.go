/*
Package authmodal coordinates the login/signup modal of a tab.

The modal remembers where the visitor wanted to go when authentication was requested.
When the session becomes authenticated while the modal is open, the modal closes and the
remembered destination is handed to the Navigator exactly once.
*/
package authmodal

import (
	"sync"

	"github.com/rs/zerolog"

	"storefront/internal/app/session"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/logx"
	"storefront/internal/pkg/notify"
)

// Mode selects the form shown by the modal.
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeLogin || m == ModeSignup
}

// State is a snapshot of the modal.
type State struct {
	Open              bool   `json:"open"`
	Mode              Mode   `json:"mode"`
	ReturnDestination string `json:"returnDestination,omitempty"`
}

// Navigator performs client-side navigation.
type Navigator interface {
	Navigate(destination string)
}

// SessionSource is the part of the Session Store the coordinator listens to.
type SessionSource interface {
	Subscribe(fn func(session.Transition)) (unsubscribe func())
}

// Coordinator owns the modal state of one tab.
type Coordinator struct {
	mu     sync.Mutex
	state  State
	nav    Navigator
	events notify.Broadcaster[State]
	logger zerolog.Logger
}

// NewCoordinator constructs a closed modal in login mode.
func NewCoordinator(nav Navigator) *Coordinator {
	return &Coordinator{
		state:  State{Mode: ModeLogin},
		nav:    nav,
		logger: logx.Component("AuthModal"),
	}
}

// Attach makes the coordinator react to the transitions of src.
func (c *Coordinator) Attach(src SessionSource) (detach func()) {
	return src.Subscribe(c.onSessionTransition)
}

// Subscribe registers fn for every modal state change.
func (c *Coordinator) Subscribe(fn func(State)) (unsubscribe func()) {
	return c.events.Subscribe(fn)
}

// State returns the current modal state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open shows the modal in mode and records where to go after authentication.
// Opening an already open modal replaces its mode and destination.
func (c *Coordinator) Open(mode Mode, returnDestination string) error {
	if !mode.Valid() {
		return errs.NewError(errs.ErrValidation, "unknown modal mode "+string(mode))
	}

	c.mu.Lock()
	c.commitLocked(State{Open: true, Mode: mode, ReturnDestination: returnDestination})
	c.mu.Unlock()
	c.events.Flush()

	return nil
}

// Close hides the modal and forgets the return destination.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if !c.state.Open {
		c.mu.Unlock()
		return
	}
	c.commitLocked(State{Mode: c.state.Mode})
	c.mu.Unlock()
	c.events.Flush()
}

// SetMode switches between login and signup while the modal is open.
func (c *Coordinator) SetMode(mode Mode) error {
	if !mode.Valid() {
		return errs.NewError(errs.ErrValidation, "unknown modal mode "+string(mode))
	}

	c.mu.Lock()
	if !c.state.Open {
		c.mu.Unlock()
		return errs.NewError(errs.ErrValidation, "modal is closed")
	}
	if c.state.Mode == mode {
		c.mu.Unlock()
		return nil
	}
	next := c.state
	next.Mode = mode
	c.commitLocked(next)
	c.mu.Unlock()
	c.events.Flush()

	return nil
}

func (c *Coordinator) onSessionTransition(tr session.Transition) {
	if !tr.EnteredAuthenticated() {
		return
	}

	c.mu.Lock()
	if !c.state.Open {
		c.mu.Unlock()
		return
	}
	destination := c.state.ReturnDestination
	c.commitLocked(State{Mode: c.state.Mode})
	c.mu.Unlock()
	c.events.Flush()

	if destination == "" {
		return
	}

	c.logger.Debug().Str("destination", destination).Msg("Authenticated, navigating to return destination.")
	c.nav.Navigate(destination)
}

func (c *Coordinator) commitLocked(next State) {
	c.state = next
	c.events.Enqueue(next)
}
