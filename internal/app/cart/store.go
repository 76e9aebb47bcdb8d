package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/app/session"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/logx"
	"storefront/internal/pkg/notify"
)

// TempIDPrefix marks ids of optimistic lines the server has not confirmed yet.
const TempIDPrefix = "tmp-"

// rehydrateTimeout bounds the background refresh that follows a login.
const rehydrateTimeout = 15 * time.Second

// SessionSource is the part of the Session Store the cart depends on.
type SessionSource interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Transition)) (unsubscribe func())
}

// entry tracks one product. visible is what the UI sees, good is the last state the
// server confirmed. seq is the sequence of the newest mutation issued for the product;
// responses carrying an older sequence never touch visible.
type entry struct {
	seq     uint64
	goodSeq uint64
	tempID  string
	visible *Line
	good    *Line
}

// Store is the Cart Store of one tab.
type Store struct {
	svc     Service
	session SessionSource

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	seq     uint64

	// generation is bumped by Clear. Responses to requests of an older generation are dropped.
	generation uint64

	// lastRefresh is the sequence mark of the newest applied Refresh.
	lastRefresh uint64

	// owner is the user id the lines belong to, kept current by the session subscription.
	// Writes are accepted only while the session user is the owner.
	owner string

	events notify.Broadcaster[View]
	newID  func() string
	logger zerolog.Logger
}

// NewStore constructs an empty Store gated on sess.
func NewStore(svc Service, sess SessionSource) *Store {
	s := &Store{
		svc:     svc,
		session: sess,
		entries: make(map[string]*entry),
		newID:   func() string { return TempIDPrefix + uuid.NewString() },
		logger:  logx.Component("CartStore"),
	}
	if snap := sess.Snapshot(); snap.State == session.StateAuthenticated && snap.User != nil {
		s.owner = snap.User.ID
	}
	return s
}

// Attach makes the cart follow the session: it is cleared when the session turns
// anonymous or changes user, and rehydrated in the background on entering authenticated.
func (s *Store) Attach() (detach func()) {
	return s.session.Subscribe(s.onSessionTransition)
}

// Subscribe registers fn for every change of the visible cart.
func (s *Store) Subscribe(fn func(View)) (unsubscribe func()) {
	return s.events.Subscribe(fn)
}

// Lines returns the visible lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

// TotalQuantity is the number of items across all visible lines.
func (s *Store) TotalQuantity() int {
	return s.View().TotalQuantity
}

// TotalValue is the value of all visible lines, priced by the price calculator.
func (s *Store) TotalValue() decimal.Decimal {
	return s.View().TotalValue
}

// View returns the visible lines together with their totals.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// AddItem merges quantity items of p into the cart: an existing line is incremented, a
// new one inserted, both clamped to the product's stock. The change is shown immediately
// and then written to the cart service as the absolute quantity of the product. A product
// without stock is an inventory conflict.
func (s *Store) AddItem(ctx context.Context, p Product, quantity int) error {
	if p.ID == "" {
		return errs.NewError(errs.ErrValidation, "product id is required")
	}
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	token, ok := s.authorizeLocked()
	if !ok {
		s.mu.Unlock()
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	e := s.entries[p.ID]
	current := 0
	if e != nil && e.visible != nil {
		current = e.visible.Quantity
	}

	desired := clamp(current+quantity, p.StockLimit)
	if desired <= current {
		s.mu.Unlock()
		return errs.Wrap(errs.ErrInventoryConflict, &ConflictError{ProductID: p.ID, Current: e.visibleCopy()})
	}

	if e == nil {
		e = &entry{}
		s.entries[p.ID] = e
		s.order = append(s.order, p.ID)
	}

	var optimistic *Line
	if e.visible != nil {
		optimistic = p.line(e.visible.ID, desired)
	} else {
		e.tempID = s.newID()
		optimistic = p.line(e.tempID, desired)
	}

	seq, gen := s.beginLocked(e, optimistic)
	s.mu.Unlock()
	s.events.Flush()

	line, err := s.svc.UpsertLine(WithToken(ctx, token), p.ID, desired)
	return s.settleUpsert(gen, p.ID, seq, line, err)
}

// UpdateQuantity sets the quantity of a line, clamped to [1, stockLimit]. It never
// removes the line; a line without stock reports an inventory conflict.
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	s.mu.Lock()
	token, ok := s.authorizeLocked()
	if !ok {
		s.mu.Unlock()
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	productID, e := s.findLocked(lineID)
	if e == nil {
		s.mu.Unlock()
		return errs.NewError(errs.ErrCartLineNotFound)
	}

	if e.visible.StockLimit < 1 {
		current := e.visibleCopy()
		s.mu.Unlock()
		return errs.Wrap(errs.ErrInventoryConflict, &ConflictError{ProductID: productID, Current: current})
	}

	if quantity < 1 {
		quantity = 1
	}
	desired := clamp(quantity, e.visible.StockLimit)
	if desired == e.visible.Quantity {
		s.mu.Unlock()
		return nil
	}

	optimistic := *e.visible
	optimistic.Quantity = desired
	seq, gen := s.beginLocked(e, &optimistic)
	s.mu.Unlock()
	s.events.Flush()

	line, err := s.svc.UpsertLine(WithToken(ctx, token), productID, desired)
	return s.settleUpsert(gen, productID, seq, line, err)
}

// RemoveItem removes a line immediately and deletes it remotely. If the delete fails the
// line is put back and the failure returned.
func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	s.mu.Lock()
	token, ok := s.authorizeLocked()
	if !ok {
		s.mu.Unlock()
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	productID, e := s.findLocked(lineID)
	if e == nil {
		s.mu.Unlock()
		return errs.NewError(errs.ErrCartLineNotFound)
	}

	removed := e.visible
	var serverID string
	if e.good != nil {
		serverID = e.good.ID
	}
	seq, gen := s.beginLocked(e, nil)
	s.mu.Unlock()
	s.events.Flush()

	// A line the server never confirmed has no server id yet; zeroing the product's
	// quantity removes whatever an in-flight add created.
	ctx = WithToken(ctx, token)
	var err error
	if serverID != "" {
		err = s.svc.DeleteLine(ctx, serverID)
	} else {
		_, err = s.svc.UpsertLine(ctx, productID, 0)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return surface(err)
	}
	e = s.entries[productID]
	if e == nil {
		s.mu.Unlock()
		return surface(err)
	}

	if err == nil {
		if seq > e.goodSeq {
			e.good, e.goodSeq = nil, seq
		}
		s.pruneLocked(productID, e, seq)
		s.mu.Unlock()
		return nil
	}

	if e.seq == seq {
		e.visible = removed
		s.events.Enqueue(s.viewLocked())
	}
	s.mu.Unlock()
	s.events.Flush()

	s.logger.Warn().Err(err).Str("product_id", productID).Msg("Cart line delete failed, line restored.")
	return surface(err)
}

// Clear drops every line without contacting the cart service. Responses to requests
// issued before Clear are ignored.
func (s *Store) Clear() {
	s.mu.Lock()
	s.generation++
	hadLines := len(s.order) > 0
	s.entries = make(map[string]*entry)
	s.order = nil
	if hadLines {
		s.events.Enqueue(s.viewLocked())
	}
	s.mu.Unlock()
	s.events.Flush()
}

// Refresh replaces the visible lines with the cart service's snapshot. Lines mutated
// after the refresh started keep their newer optimistic state.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	token, ok := s.authorizeLocked()
	if !ok {
		s.mu.Unlock()
		return errs.NewError(errs.ErrNotAuthenticated)
	}
	owner := s.owner
	s.seq++
	mark := s.seq
	gen := s.generation
	s.mu.Unlock()

	lines, err := s.svc.ListLines(WithToken(ctx, token), owner)
	if err != nil {
		return surface(err)
	}

	s.mu.Lock()
	if gen != s.generation || mark < s.lastRefresh {
		s.mu.Unlock()
		return nil
	}
	s.lastRefresh = mark

	fresh := make(map[string]*Line, len(lines))
	order := make([]string, 0, len(lines))
	for i := range lines {
		l := normalize(&lines[i])
		if l == nil {
			continue
		}
		if _, dup := fresh[l.ProductID]; !dup {
			order = append(order, l.ProductID)
		}
		fresh[l.ProductID] = l
	}

	entries := make(map[string]*entry, len(fresh))
	for _, productID := range order {
		entries[productID] = &entry{seq: mark, goodSeq: mark, visible: fresh[productID], good: fresh[productID]}
	}

	// Keep mutations issued after the refresh started.
	for _, productID := range s.order {
		e := s.entries[productID]
		if e.seq <= mark {
			continue
		}
		if e.goodSeq < mark {
			e.good, e.goodSeq = fresh[productID], mark
		}
		if _, ok := entries[productID]; !ok {
			order = append(order, productID)
		}
		entries[productID] = e
	}

	s.entries = entries
	s.order = order
	s.events.Enqueue(s.viewLocked())
	s.mu.Unlock()
	s.events.Flush()

	return nil
}

func (s *Store) onSessionTransition(tr session.Transition) {
	switch tr.To {
	case session.StateAnonymous:
		s.mu.Lock()
		s.owner = ""
		s.mu.Unlock()
		s.Clear()

	case session.StateAuthenticated:
		if tr.User == nil {
			return
		}
		s.mu.Lock()
		previous := s.owner
		s.owner = tr.User.ID
		s.mu.Unlock()

		if previous == tr.User.ID {
			return
		}
		if previous != "" {
			s.Clear()
		}
		go s.rehydrate()
	}
}

func (s *Store) rehydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), rehydrateTimeout)
	defer cancel()

	if err := s.Refresh(ctx); err != nil && !errs.Is(err, errs.ErrNotAuthenticated) {
		s.logger.Warn().Err(err).Msg("Cart rehydration after login failed.")
	}
}

// beginLocked installs an optimistic state for e and returns the mutation's sequence
// and generation.
func (s *Store) beginLocked(e *entry, optimistic *Line) (seq, gen uint64) {
	s.seq++
	e.seq = s.seq
	e.visible = optimistic
	s.events.Enqueue(s.viewLocked())
	return e.seq, s.generation
}

// settleUpsert applies the outcome of an upsert issued with seq.
func (s *Store) settleUpsert(gen uint64, productID string, seq uint64, line *Line, err error) error {
	s.mu.Lock()
	e := s.entries[productID]
	if gen != s.generation || e == nil {
		s.mu.Unlock()
		return surface(err)
	}

	if err == nil {
		confirmed := normalize(line)
		if seq > e.goodSeq {
			e.good, e.goodSeq = confirmed, seq
		}
		if e.seq == seq {
			e.visible = confirmed
			s.events.Enqueue(s.viewLocked())
		}
		s.pruneLocked(productID, e, seq)
		s.mu.Unlock()
		s.events.Flush()
		return nil
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) && seq > e.goodSeq {
		e.good, e.goodSeq = normalize(conflict.Current), seq
	}
	if e.seq == seq {
		e.visible = e.good
		s.events.Enqueue(s.viewLocked())
	}
	s.pruneLocked(productID, e, seq)
	s.mu.Unlock()
	s.events.Flush()

	s.logger.Warn().Err(err).Str("product_id", productID).Msg("Cart write rejected, rolled back to last confirmed state.")
	return surface(err)
}

// pruneLocked forgets e once the latest mutation settled and the product is absent.
func (s *Store) pruneLocked(productID string, e *entry, seq uint64) {
	if e.seq != seq || e.visible != nil || e.good != nil {
		return
	}
	delete(s.entries, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// findLocked resolves a visible line by its current or temporary id.
func (s *Store) findLocked(lineID string) (string, *entry) {
	for _, productID := range s.order {
		e := s.entries[productID]
		if e.visible == nil {
			continue
		}
		if e.visible.ID == lineID || (e.tempID != "" && e.tempID == lineID) {
			return productID, e
		}
	}
	return "", nil
}

func (s *Store) linesLocked() []Line {
	lines := make([]Line, 0, len(s.order))
	for _, productID := range s.order {
		if e := s.entries[productID]; e.visible != nil {
			lines = append(lines, *e.visible)
		}
	}
	return lines
}

func (s *Store) viewLocked() View {
	view := View{Lines: s.linesLocked(), TotalValue: decimal.Zero}
	for _, l := range view.Lines {
		view.TotalQuantity += l.Quantity
		view.TotalValue = view.TotalValue.Add(l.Total())
	}
	return view
}

// authorizeLocked reports whether the session is authenticated as the cart's owner and
// returns that user's token. Callers hold mu; the session never calls into the cart while
// holding its own lock.
func (s *Store) authorizeLocked() (token string, ok bool) {
	snap := s.session.Snapshot()
	if snap.State != session.StateAuthenticated || snap.User == nil {
		return "", false
	}
	if s.owner == "" || snap.User.ID != s.owner {
		return "", false
	}
	return snap.Token, true
}

func (e *entry) visibleCopy() *Line {
	if e == nil || e.visible == nil {
		return nil
	}
	l := *e.visible
	return &l
}

// clamp limits quantity to [0, stockLimit].
func clamp(quantity, stockLimit int) int {
	if stockLimit < 0 {
		stockLimit = 0
	}
	if quantity > stockLimit {
		return stockLimit
	}
	if quantity < 0 {
		return 0
	}
	return quantity
}

// normalize caps a server line at its stock. A line left without items, including one
// whose stock is gone, becomes absence.
func normalize(l *Line) *Line {
	if l == nil {
		return nil
	}
	out := *l
	out.Quantity = clamp(out.Quantity, out.StockLimit)
	if out.Quantity == 0 {
		return nil
	}
	return &out
}

// surface maps a cart service failure onto the error kinds reported to callers.
func surface(err error) error {
	if err == nil {
		return nil
	}

	if errs.CodeOf(err) != errs.ErrUnknown {
		return err
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return errs.Wrap(errs.ErrInventoryConflict, err)
	}
	return errs.Wrap(errs.ErrRemoteUnavailable, err)
}
