package tab

import (
	"encoding/json"
	"time"

	"storefront/internal/app/authmodal"
	"storefront/internal/app/cart"
	"storefront/internal/app/prefs"
	"storefront/internal/app/pricing"
	"storefront/internal/app/roles"
	"storefront/internal/app/session"
	"storefront/internal/pkg/randx"
)

// MessageType names a message exchanged with the browser tab.
type MessageType string

// Inbound intents.
const (
	TypeLogin         MessageType = "session.login"
	TypeSignup        MessageType = "session.signup"
	TypeLogout        MessageType = "session.logout"
	TypeRefresh       MessageType = "session.refresh"
	TypeModalOpen     MessageType = "modal.open"
	TypeModalClose    MessageType = "modal.close"
	TypeModalMode     MessageType = "modal.mode"
	TypeCartAdd       MessageType = "cart.add"
	TypeCartUpdate    MessageType = "cart.update"
	TypeCartRemove    MessageType = "cart.remove"
	TypeCartRefresh   MessageType = "cart.refresh"
	TypePreferenceSet MessageType = "prefs.set"
)

// Outbound pushes.
const (
	TypeHello       MessageType = "hello"
	TypeSession     MessageType = "session"
	TypeModal       MessageType = "modal"
	TypeCart        MessageType = "cart"
	TypeNavigate    MessageType = "navigate"
	TypePreferences MessageType = "prefs"
	TypeAck         MessageType = "ack"
	TypeError       MessageType = "error"
)

// Message is the outbound frame.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	RequestID string      `json:"requestId,omitempty"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewMessage builds an outbound frame answering requestID (which may be empty).
func NewMessage(msgType MessageType, requestID string, payload any) Message {
	return Message{
		ID:        randx.TabID(),
		Type:      msgType,
		RequestID: requestID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// inboundMessage is the frame sent by the tab.
type inboundMessage struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload greets a new connection.
type HelloPayload struct {
	TabID    string `json:"tabId"`
	DeviceID string `json:"deviceId"`
}

// UserView is the browser's view of the authenticated user.
type UserView struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	EmailVerified bool         `json:"emailVerified"`
	Roles         []roles.Role `json:"roles"`
}

// SessionPayload is pushed on every session transition.
type SessionPayload struct {
	State          session.State    `json:"state"`
	User           *UserView        `json:"user,omitempty"`
	Navigation     []roles.NavEntry `json:"navigation"`
	CanAccessAdmin bool             `json:"canAccessAdmin"`
}

// ModalPayload is pushed on every modal change.
type ModalPayload = authmodal.State

// CartLineView is a cart line with its price facts rendered for display.
type CartLineView struct {
	cart.Line
	PriceFacts pricing.Display `json:"price"`
	Total      string          `json:"total"`
}

// CartPayload is pushed on every cart change.
type CartPayload struct {
	Lines         []CartLineView `json:"lines"`
	TotalQuantity int            `json:"totalQuantity"`
	TotalValue    string         `json:"totalValue"`
}

// NavigatePayload asks the tab to navigate.
type NavigatePayload struct {
	Destination string `json:"destination"`
}

// PreferencesPayload carries the per-seller delivery choices.
type PreferencesPayload struct {
	Sellers map[string]prefs.Method `json:"sellers"`
}

// AckPayload confirms an intent.
type AckPayload struct {
	Outcome string `json:"outcome,omitempty"`
}

// ErrorPayload reports a failed intent.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Inbound payloads.
type (
	credentialsPayload = session.Credentials

	modalOpenPayload struct {
		Mode              authmodal.Mode `json:"mode"`
		ReturnDestination string         `json:"returnDestination"`
	}

	modalModePayload struct {
		Mode authmodal.Mode `json:"mode"`
	}

	cartAddPayload struct {
		Product  cart.Product `json:"product"`
		Quantity int          `json:"quantity"`
		Origin   string       `json:"origin"`
	}

	cartUpdatePayload struct {
		LineID   string `json:"lineId"`
		Quantity int    `json:"quantity"`
	}

	cartRemovePayload struct {
		LineID string `json:"lineId"`
	}

	preferenceSetPayload struct {
		SellerID string       `json:"sellerId"`
		Method   prefs.Method `json:"method"`
	}
)
