package service

import (
	"math"

	"storefront-service/internal/entity"
)

// SplitResolvable separates items whose product still exists from those whose
// product was deleted after the quote was made.
func SplitResolvable(items []entity.QuoteItem) (kept, dropped []entity.QuoteItem) {
	for _, item := range items {
		if item.Resolved() {
			kept = append(kept, item)
		} else {
			dropped = append(dropped, item)
		}
	}
	return kept, dropped
}

// AllocatePrices computes the per-unit price of every item. An item-level
// offered price wins; otherwise the quote total is split equally across the
// units being ordered.
func AllocatePrices(items []entity.QuoteItem, total float64) []entity.OrderLine {
	units := 0
	for _, item := range items {
		units += item.Quantity
	}

	var perUnit float64
	if units > 0 {
		perUnit = roundMoney(total / float64(units))
	}

	lines := make([]entity.OrderLine, 0, len(items))
	for _, item := range items {
		price := perUnit
		if item.OfferedPrice != nil {
			price = roundMoney(*item.OfferedPrice)
		}
		lines = append(lines, entity.OrderLine{
			Product:  item.ProductID,
			Quantity: item.Quantity,
			Price:    price,
		})
	}
	return lines
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
