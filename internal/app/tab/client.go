package tab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"storefront/internal/app/authmodal"
	"storefront/internal/app/cart"
	"storefront/internal/app/localstore"
	"storefront/internal/app/session"
	"storefront/internal/app/storage"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/logx"
	"storefront/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the tab.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the tab.
	maxMessageSize = 16384

	// capacity of the outbound queue.
	sendBuffer = 256

	// upper bound for one intent's remote round trips.
	intentTimeout = 20 * time.Second

	// AuthAttemptRate and AuthAttemptBurst throttle login and signup intents per tab.
	AuthAttemptRate  = rate.Limit(0.2)
	AuthAttemptBurst = 5
)

// Client is one connected browser tab.
type Client struct {
	id       string
	deviceID string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// the stores of this tab.
	core *Core

	// signer presigns cart line images; nil leaves image references untouched.
	signer storage.ImageSigner

	// a buffered channel used to queue messages waiting to be sent to the tab.
	send chan []byte

	// done is closed once the connection is shutting down.
	done      chan struct{}
	closeOnce sync.Once

	// ctx bounds every intent started by the tab; cancelled on disconnect.
	ctx    context.Context
	cancel context.CancelFunc

	authLimiter *rate.Limiter
	onClose     func(*Client)

	// structured logger with tab and device context.
	logger zerolog.Logger
}

// NewClient constructs a Client and the Core of its tab.
func NewClient(conn *websocket.Conn, deviceID string, deps Deps, local localstore.Store, signer storage.ImageSigner, onClose func(*Client)) *Client {
	id := randx.TabID()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		id:          id,
		deviceID:    deviceID,
		conn:        conn,
		signer:      signer,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		authLimiter: rate.NewLimiter(AuthAttemptRate, AuthAttemptBurst),
		onClose:     onClose,
		logger: logx.Logger().With().
			Str("tab_id", id).
			Str("device_id", deviceID).
			Logger(),
	}
	c.core = NewCore(deps, local, c)

	return c
}

// ID returns the tab id.
func (c *Client) ID() string {
	return c.id
}

// Core returns the stores of the tab.
func (c *Client) Core() *Core {
	return c.core
}

// Start greets the tab, pushes the initial state and rehydrates the session in the background.
func (c *Client) Start() {
	c.push(TypeHello, "", HelloPayload{TabID: c.id, DeviceID: c.deviceID})
	c.ModalChanged(c.core.Modal.State())
	c.CartChanged(c.core.Cart.View())
	c.pushPreferences("")

	go c.core.Session.Initialize(c.ctx)
}

// ReadPump reads intents from the connection until it closes, then tears the tab down.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (tab close/going away)")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

// cleanupOnDisconnect runs when ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Tab connection cleanup starting.")

	c.cancel()
	c.markDone()
	c.core.Close()

	if c.onClose != nil {
		c.onClose(c)
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Tab connection close error")
	}
}

func (c *Client) markDone() {
	c.closeOnce.Do(func() { close(c.done) })
}

// processInboundMessage decodes one frame and dispatches the intent.
func (c *Client) processInboundMessage(messageBytes []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		c.logger.Warn().Err(err).Int("message_len", len(messageBytes)).Msg("Tab sent invalid JSON")
		c.SendError("", errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch msg.Type {
	case TypeLogin, TypeSignup:
		c.handleAuthenticate(msg)

	case TypeLogout:
		c.runIntent(msg.RequestID, func(ctx context.Context) (string, error) {
			c.core.Session.Logout(ctx)
			return "", nil
		})

	case TypeRefresh:
		c.runIntent(msg.RequestID, func(ctx context.Context) (string, error) {
			return "", c.core.Session.Refresh(ctx)
		})

	case TypeModalOpen:
		var p modalOpenPayload
		if c.decode(msg, &p) {
			c.reply(msg.RequestID, "", c.core.Modal.Open(p.Mode, p.ReturnDestination))
		}

	case TypeModalClose:
		c.core.Modal.Close()
		c.reply(msg.RequestID, "", nil)

	case TypeModalMode:
		var p modalModePayload
		if c.decode(msg, &p) {
			c.reply(msg.RequestID, "", c.core.Modal.SetMode(p.Mode))
		}

	case TypeCartAdd:
		var p cartAddPayload
		if c.decode(msg, &p) {
			c.runIntent(msg.RequestID, func(ctx context.Context) (string, error) {
				return string(c.core.Actions.RequestAddToCart(ctx, p.Product, p.Quantity, p.Origin)), nil
			})
		}

	case TypeCartUpdate:
		var p cartUpdatePayload
		if c.decode(msg, &p) {
			c.runIntent(msg.RequestID, func(ctx context.Context) (string, error) {
				return "", c.core.Cart.UpdateQuantity(ctx, p.LineID, p.Quantity)
			})
		}

	case TypeCartRemove:
		var p cartRemovePayload
		if c.decode(msg, &p) {
			c.runIntent(msg.RequestID, func(ctx context.Context) (string, error) {
				return "", c.core.Cart.RemoveItem(ctx, p.LineID)
			})
		}

	case TypeCartRefresh:
		c.runIntent(msg.RequestID, func(ctx context.Context) (string, error) {
			return "", c.core.Cart.Refresh(ctx)
		})

	case TypePreferenceSet:
		var p preferenceSetPayload
		if c.decode(msg, &p) {
			c.runIntent(msg.RequestID, func(ctx context.Context) (string, error) {
				if err := c.core.Prefs.Set(ctx, p.SellerID, p.Method); err != nil {
					return "", err
				}
				c.pushPreferences(msg.RequestID)
				return "", nil
			})
		}

	default:
		c.logger.Warn().Str("msg_type", string(msg.Type)).Msg("Tab sent unsupported message type")
		c.SendError(msg.RequestID, errs.NewError(errs.ErrInvalidParams))
	}
}

// handleAuthenticate runs a throttled login or signup.
func (c *Client) handleAuthenticate(msg inboundMessage) {
	if !c.authLimiter.Allow() {
		c.logger.Warn().Str("msg_type", string(msg.Type)).Msg("Authentication attempts throttled")
		c.SendError(msg.RequestID, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	var creds credentialsPayload
	if !c.decode(msg, &creds) {
		return
	}

	authenticate := c.core.Session.Login
	if msg.Type == TypeSignup {
		authenticate = c.core.Session.Signup
	}

	c.runIntent(msg.RequestID, func(ctx context.Context) (string, error) {
		_, err := authenticate(ctx, creds)
		return "", err
	})
}

// runIntent executes fn off the read loop so that slow remote calls never block later
// intents, such as a logout issued while a login is still in flight.
func (c *Client) runIntent(requestID string, fn func(ctx context.Context) (string, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, intentTimeout)
		defer cancel()

		outcome, err := fn(ctx)
		c.reply(requestID, outcome, err)
	}()
}

func (c *Client) decode(msg inboundMessage, dst any) bool {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		c.logger.Warn().Err(err).Str("msg_type", string(msg.Type)).Msg("Tab sent invalid payload")
		c.SendError(msg.RequestID, errs.NewError(errs.ErrInvalidParams))
		return false
	}
	return true
}

// reply acknowledges requestID or reports err.
func (c *Client) reply(requestID, outcome string, err error) {
	if err != nil {
		c.SendError(requestID, err)
		return
	}
	if requestID != "" {
		c.push(TypeAck, requestID, AckPayload{Outcome: outcome})
	}
}

// SessionChanged implements Observer.
func (c *Client) SessionChanged(tr session.Transition) {
	payload := SessionPayload{
		State:          tr.To,
		Navigation:     c.core.Authorizer.Navigation(),
		CanAccessAdmin: c.core.Authorizer.CanAccessAdmin(),
	}
	if tr.User != nil {
		payload.User = &UserView{
			ID:            tr.User.ID,
			Email:         tr.User.Email,
			EmailVerified: tr.User.EmailVerified,
			Roles:         tr.User.Roles.Sorted(),
		}
	}
	c.push(TypeSession, "", payload)
}

// ModalChanged implements Observer.
func (c *Client) ModalChanged(state authmodal.State) {
	c.push(TypeModal, "", ModalPayload(state))
}

// CartChanged implements Observer.
func (c *Client) CartChanged(view cart.View) {
	payload := CartPayload{
		Lines:         make([]CartLineView, 0, len(view.Lines)),
		TotalQuantity: view.TotalQuantity,
		TotalValue:    view.TotalValue.StringFixed(2),
	}
	for _, l := range view.Lines {
		l.Image = storage.ResolveImage(c.ctx, c.signer, l.Image)
		payload.Lines = append(payload.Lines, CartLineView{
			Line:       l,
			PriceFacts: l.Price().Display(),
			Total:      l.Total().StringFixed(2),
		})
	}
	c.push(TypeCart, "", payload)
}

// Navigate implements authmodal.Navigator.
func (c *Client) Navigate(destination string) {
	c.push(TypeNavigate, "", NavigatePayload{Destination: destination})
}

func (c *Client) pushPreferences(requestID string) {
	all, err := c.core.Prefs.All(c.ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load delivery preferences")
		return
	}
	c.push(TypePreferences, requestID, PreferencesPayload{Sellers: all})
}

// SendError pushes err to the tab. Errors without a business code are reported as
// ErrUnknown without their text.
func (c *Client) SendError(requestID string, err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		c.logger.Error().Err(err).Msg("Unclassified error reached the tab")
		customErr = errs.NewError(errs.ErrUnknown)
	}

	c.push(TypeError, requestID, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

func (c *Client) push(msgType MessageType, requestID string, payload any) {
	if err := c.sendMessage(NewMessage(msgType, requestID, payload)); err != nil {
		c.logger.Warn().Err(err).Str("msg_type", string(msgType)).Msg("Failed to queue message")
	}
}

// sendMessage marshals data and queues it without blocking.
func (c *Client) sendMessage(data any) error {
	messageBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	select {
	case <-c.done:
		return errors.New("tab is closed")
	default:
	}

	select {
	case c.send <- messageBytes:
		return nil
	default:
		return fmt.Errorf("send queue full (%d messages)", len(c.send))
	}
}

// WritePump writes queued messages and heartbeats to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Tab connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.write(websocket.TextMessage, message) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			return
		}
	}
}

// write sends one frame. Returns false if the WritePump loop should terminate.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("frame_type", messageType).Msg("Error writing frame")
		return false
	}

	return true
}

// Kick closes the connection with a going-away frame, for example on server shutdown.
func (c *Client) Kick(reason string) {
	c.logger.Info().Str("reason", reason).Msg("Closing tab connection.")

	closeMessage := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send close frame.")
	}

	c.cancel()
	c.markDone()
}
