package handler

import (
	"net/http"

	"storefront/internal/app/pricing"
	"storefront/internal/pkg/req"
	"storefront/internal/pkg/resp"
)

// PriceRequest carries raw, possibly formatted, price inputs.
type PriceRequest struct {
	Price    string `json:"price"`
	Discount string `json:"discount"`
	Quantity int    `json:"quantity,omitempty"`
}

// PriceResponse is the rendered price facts, plus the line total when a quantity was given.
type PriceResponse struct {
	pricing.Display
	LineTotal string `json:"lineTotal,omitempty"`
}

// HandlePrice exposes the price calculator to server-rendered views so that they apply
// the same rounding and clamping as the cart.
func HandlePrice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body PriceRequest
		if err := req.BindJSON(w, r, &body); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		facts := pricing.Calculate(body.Price, body.Discount)

		out := PriceResponse{Display: facts.Display()}
		if body.Quantity > 0 {
			out.LineTotal = facts.LineTotal(body.Quantity).StringFixed(2)
		}

		resp.RespondSuccess(w, r, out)
	}
}
