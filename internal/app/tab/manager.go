package tab

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"storefront/internal/app/localstore"
	"storefront/internal/app/storage"
	"storefront/internal/pkg/logx"
)

// Manager tracks every connected tab.
type Manager struct {
	deps   Deps
	signer storage.ImageSigner

	// tabs maps tab ids to their clients.
	tabs map[string]*Client

	// mu protects tabs and closed.
	mu     sync.RWMutex
	closed bool

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs a Manager creating tabs over deps. signer may be nil.
func NewManager(deps Deps, signer storage.ImageSigner) *Manager {
	return &Manager{
		deps:   deps,
		signer: signer,
		tabs:   make(map[string]*Client),
		logger: logx.Component("TabManager"),
	}
}

// LocalStore opens the persisted state of deviceID. It fails for malformed device ids.
func (m *Manager) LocalStore(deviceID string) (localstore.Store, error) {
	return m.deps.Locals.ForDevice(deviceID)
}

// Serve runs the tab on conn until the connection closes.
func (m *Manager) Serve(conn *websocket.Conn, deviceID string, local localstore.Store) {
	client := NewClient(conn, deviceID, m.deps, local, m.signer, m.unregister)

	if !m.register(client) {
		client.Kick("server shutting down")
		client.cleanupOnDisconnect()
		return
	}

	go client.WritePump()

	client.Start()
	client.ReadPump()
}

func (m *Manager) register(c *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.tabs[c.ID()] = c
	m.logger.Info().Str("tab_id", c.ID()).Int("active_tabs", len(m.tabs)).Msg("Tab registered.")
	return true
}

func (m *Manager) unregister(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tabs[c.ID()]; ok {
		delete(m.tabs, c.ID())
		m.logger.Info().Str("tab_id", c.ID()).Int("active_tabs", len(m.tabs)).Msg("Tab removed.")
	}
}

// Count returns the number of connected tabs.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tabs)
}

// Shutdown closes every tab and refuses new ones.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("Shutting down tab manager...")

	m.mu.Lock()
	m.closed = true
	tabs := make([]*Client, 0, len(m.tabs))
	for _, c := range m.tabs {
		tabs = append(tabs, c)
	}
	m.mu.Unlock()

	for _, c := range tabs {
		c.Kick("server shutting down")
	}

	m.logger.Info().Int("closed_tabs", len(tabs)).Msg("Tab manager shutdown complete.")
}
