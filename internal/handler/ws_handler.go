/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which validates the device id, upgrades
the HTTP connection to WebSocket and runs the tab until it disconnects.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"storefront/internal/app/localstore"
	"storefront/internal/app/tab"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/logx"
	"storefront/internal/pkg/randx"
	"storefront/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc serving one browser tab per connection.
// The tab identifies its browser with the did query parameter; a browser without one is
// issued a fresh device id, announced in the hello message.
func HandleWebSocket(manager *tab.Manager, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.URL.Query().Get("did")
		if deviceID == "" {
			generated, err := randx.DeviceID()
			if err != nil {
				logx.Error(err, "Failed to generate device id")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			deviceID = generated
		}

		local, err := manager.LocalStore(deviceID)
		if err != nil {
			if errors.Is(err, localstore.ErrInvalidDeviceID) {
				logx.Warn("WebSocket request rejected: invalid device id")
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			logx.Error(err, "Failed to open local state for device")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Info("WebSocket connection established", "device_id", deviceID)

		manager.Serve(conn, deviceID, local)
	}
}
