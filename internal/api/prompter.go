package api

import (
	"context"

	"storefront-service/internal/address"
	"storefront-service/internal/entity"
)

// checkoutRequest carries the answers the browser collected up front: the
// shipping address (structured or free text) and whether to continue when some
// products are gone.
type checkoutRequest struct {
	Address     *address.Form `json:"address"`
	AddressText string        `json:"addressText"`
	Confirm     bool          `json:"confirmPartial"`
}

func (r checkoutRequest) ConfirmPartial(context.Context, []entity.QuoteItem, []entity.QuoteItem) bool {
	return r.Confirm
}

func (r checkoutRequest) ShippingAddress(context.Context) (string, error) {
	if r.Address != nil {
		return r.Address.Build()
	}
	return address.FromPrompt(r.AddressText)
}
