package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"storefront/internal/app/cart"
	"storefront/internal/pkg/errs"
)

// CartClient talks to the cart service. It implements cart.Service; each call presents
// the session token found in its context (cart.WithToken).
type CartClient struct {
	baseClient
}

// NewCartClient constructs a CartClient for the service at baseURL.
func NewCartClient(httpClient *http.Client, baseURL string) *CartClient {
	return &CartClient{baseClient: newBaseClient(httpClient, baseURL, "CartClient")}
}

type linesPayload struct {
	Lines []cart.Line `json:"lines"`
}

type quantityPayload struct {
	Quantity int `json:"quantity"`
}

type conflictPayload struct {
	Current *cart.Line `json:"current"`
}

// ListLines returns the server's cart of userID.
func (c *CartClient) ListLines(ctx context.Context, userID string) ([]cart.Line, error) {
	var payload linesPayload
	path := "/api/cart?userId=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, cart.TokenFromContext(ctx), nil, &payload); err != nil {
		return nil, classifyCart(err, "")
	}
	return payload.Lines, nil
}

// UpsertLine sets the absolute quantity of productID.
func (c *CartClient) UpsertLine(ctx context.Context, productID string, quantity int) (*cart.Line, error) {
	var line *cart.Line
	path := "/api/cart/items/" + url.PathEscape(productID)
	if err := c.do(ctx, http.MethodPut, path, cart.TokenFromContext(ctx), quantityPayload{Quantity: quantity}, &line); err != nil {
		return nil, classifyCart(err, productID)
	}
	return line, nil
}

// DeleteLine removes a line. A line the server no longer has counts as deleted.
func (c *CartClient) DeleteLine(ctx context.Context, lineID string) error {
	path := "/api/cart/lines/" + url.PathEscape(lineID)
	err := c.do(ctx, http.MethodDelete, path, cart.TokenFromContext(ctx), nil, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return classifyCart(err, "")
	}
	return nil
}

// classifyCart maps a failed cart call onto the cart error kinds. Inventory conflicts
// carry the server's current line when the service reports one.
func classifyCart(err error, productID string) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Status == http.StatusConflict || apiErr.Code == errs.ErrInventoryConflict:
		conflict := &cart.ConflictError{ProductID: productID}
		var payload conflictPayload
		if len(apiErr.Data) > 0 && json.Unmarshal(apiErr.Data, &payload) == nil {
			conflict.Current = payload.Current
		}
		return errs.Wrap(errs.ErrInventoryConflict, conflict)
	case apiErr.Status == http.StatusUnauthorized || apiErr.Code == errs.ErrNotAuthenticated:
		return errs.Wrap(errs.ErrNotAuthenticated, err)
	case apiErr.Status == http.StatusNotFound || apiErr.Code == errs.ErrCartLineNotFound:
		return errs.Wrap(errs.ErrCartLineNotFound, err)
	default:
		return errs.Wrap(errs.ErrRemoteUnavailable, err)
	}
}
