/*
Package cart holds the Cart Store of a tab: the authenticated visitor's cart lines, mutated
optimistically and reconciled with the remote cart service.
*/
package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/app/pricing"
)

// Line is one product in the cart. Quantity never exceeds StockLimit; a line whose
// quantity would drop to zero is removed instead.
type Line struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"productId"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	OriginalUnitPrice decimal.Decimal `json:"originalUnitPrice"`
	DiscountPercent   decimal.Decimal `json:"discountPercent"`
	Quantity          int             `json:"quantity"`
	StockLimit        int             `json:"stockLimit"`
	Name              string          `json:"name"`
	Image             string          `json:"image,omitempty"`
	Seller            string          `json:"seller,omitempty"`
	Category          string          `json:"category,omitempty"`
}

// Price derives the line's unit price facts. Lines without an original price fall back
// to the unit price snapshot.
func (l Line) Price() pricing.Facts {
	base := l.OriginalUnitPrice
	if base.IsZero() {
		base = l.UnitPrice
	}
	return pricing.FromDecimal(base, l.DiscountPercent)
}

// Total is the line value at its current quantity.
func (l Line) Total() decimal.Decimal {
	return l.Price().LineTotal(l.Quantity)
}

// Product is the product snapshot the UI holds when it asks to add to the cart.
type Product struct {
	ID                string          `json:"id"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	OriginalUnitPrice decimal.Decimal `json:"originalUnitPrice"`
	DiscountPercent   decimal.Decimal `json:"discountPercent"`
	StockLimit        int             `json:"stockLimit"`
	Name              string          `json:"name"`
	Image             string          `json:"image,omitempty"`
	Seller            string          `json:"seller,omitempty"`
	Category          string          `json:"category,omitempty"`
}

func (p Product) line(id string, quantity int) *Line {
	return &Line{
		ID:                id,
		ProductID:         p.ID,
		UnitPrice:         p.UnitPrice,
		OriginalUnitPrice: p.OriginalUnitPrice,
		DiscountPercent:   p.DiscountPercent,
		Quantity:          quantity,
		StockLimit:        p.StockLimit,
		Name:              p.Name,
		Image:             p.Image,
		Seller:            p.Seller,
		Category:          p.Category,
	}
}

type tokenKey struct{}

// WithToken returns a copy of ctx carrying the session token a Service call acts with.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the session token stored by WithToken, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Service is the remote cart of the authenticated user. Calls carry the user's session
// token in their context, see WithToken.
type Service interface {
	ListLines(ctx context.Context, userID string) ([]Line, error)
	// UpsertLine sets the absolute quantity of productID. A returned line with quantity 0,
	// or a nil line, means the product is no longer in the cart.
	UpsertLine(ctx context.Context, productID string, quantity int) (*Line, error)
	DeleteLine(ctx context.Context, lineID string) error
}

// ConflictError is returned by a Service when a write no longer fits the available stock.
// Current is the server's line for the product after the rejection, if known.
type ConflictError struct {
	ProductID string
	Current   *Line
}

func (e *ConflictError) Error() string {
	if e.Current == nil {
		return fmt.Sprintf("inventory conflict on product %s", e.ProductID)
	}
	return fmt.Sprintf("inventory conflict on product %s: %d in cart, %d in stock", e.ProductID, e.Current.Quantity, e.Current.StockLimit)
}

// View is a consistent snapshot of the cart.
type View struct {
	Lines         []Line          `json:"lines"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
}
