package backend

import (
	"bytes"
	"encoding/json"
	"time"

	"storefront-service/internal/entity"
)

// The backend has migrated several field names over time (user/userId,
// product/productId) and sometimes populates references as objects. Everything
// is folded into the entity shapes here so callers never branch on shape.

type rawRef struct {
	ID    string  `json:"_id"`
	AltID string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone string  `json:"phone"`
	Price float64 `json:"price"`
}

func (r rawRef) id() string {
	if r.ID != "" {
		return r.ID
	}
	return r.AltID
}

// decodeRef reads a reference that may be absent, null, a bare id or a
// populated object. ok is false for absent and null.
func decodeRef(raw json.RawMessage) (ref rawRef, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return rawRef{}, false
	}
	if trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil || id == "" {
			return rawRef{}, false
		}
		return rawRef{ID: id}, true
	}
	if err := json.Unmarshal(trimmed, &ref); err != nil {
		return rawRef{}, false
	}
	return ref, ref.id() != ""
}

// firstPresent prefers the canonical field and falls back to the legacy one.
func firstPresent(canonical, legacy json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(canonical)) > 0 {
		return canonical
	}
	return legacy
}

type rawAdminResponse struct {
	Message            string   `json:"message"`
	TotalPrice         float64  `json:"totalPrice"`
	DiscountPercentage *float64 `json:"discountPercentage"`
}

type rawQuoteItem struct {
	Product       json.RawMessage `json:"product"`
	ProductID     json.RawMessage `json:"productId"`
	Quantity      int             `json:"quantity"`
	OfferedPrice  *float64        `json:"offeredPrice"`
	OriginalPrice *float64        `json:"originalPrice"`
}

type rawQuote struct {
	ID            string            `json:"_id"`
	AltID         string            `json:"id"`
	User          json.RawMessage   `json:"user"`
	UserID        json.RawMessage   `json:"userId"`
	Products      []rawQuoteItem    `json:"products"`
	Message       string            `json:"message"`
	AdminResponse *rawAdminResponse `json:"adminResponse"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	OrderID       json.RawMessage   `json:"orderId"`
	Type          string            `json:"type"`
}

func (r rawQuote) normalize() entity.Quote {
	q := entity.Quote{
		ID:        r.ID,
		Message:   r.Message,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		Type:      r.Type,
		Items:     make([]entity.QuoteItem, 0, len(r.Products)),
	}
	if q.ID == "" {
		q.ID = r.AltID
	}
	if q.Type == "" {
		q.Type = entity.QuoteTypeStandard
	}

	if user, ok := decodeRef(firstPresent(r.User, r.UserID)); ok {
		q.UserID = user.id()
		q.UserName = user.Name
		q.UserEmail = user.Email
		q.UserPhone = user.Phone
	}
	if order, ok := decodeRef(r.OrderID); ok {
		q.OrderID = order.id()
	}

	if r.AdminResponse != nil {
		q.AdminResponse = &entity.AdminResponse{
			Message:            r.AdminResponse.Message,
			TotalPrice:         r.AdminResponse.TotalPrice,
			DiscountPercentage: r.AdminResponse.DiscountPercentage,
		}
	}

	for _, item := range r.Products {
		qi := entity.QuoteItem{
			Quantity:      item.Quantity,
			OfferedPrice:  item.OfferedPrice,
			OriginalPrice: item.OriginalPrice,
		}
		if product, ok := decodeRef(firstPresent(item.Product, item.ProductID)); ok {
			qi.ProductID = product.id()
			qi.Product = &entity.ProductRef{ID: product.id(), Name: product.Name, Price: product.Price}
		}
		q.Items = append(q.Items, qi)
	}
	return q
}

type rawOrderItem struct {
	Product       json.RawMessage `json:"product"`
	ProductID     json.RawMessage `json:"productId"`
	Quantity      int             `json:"quantity"`
	Price         float64         `json:"price"`
	SerialNumbers []string        `json:"serialNumbers"`
}

type rawDropship struct {
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	CustomerEmail string `json:"customerEmail"`
	Address       string `json:"address"`
}

type rawOrder struct {
	ID              string          `json:"_id"`
	AltID           string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	Products        []rawOrderItem  `json:"products"`
	TotalAmount     float64         `json:"totalAmount"`
	OrderStatus     string          `json:"orderStatus"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"paymentStatus"`
	ShippingAddress string          `json:"shippingAddress"`
	IsDropship      bool            `json:"isDropship"`
	Dropship        *rawDropship    `json:"dropshipDetails"`
	TrackingLink    string          `json:"trackingLink"`
	TrackingID      string          `json:"trackingId"`
	InvoiceURL      string          `json:"invoiceUrl"`
	Quote           json.RawMessage `json:"quote"`
	QuoteID         json.RawMessage `json:"quoteId"`
}

func (r rawOrder) normalize() entity.Order {
	o := entity.Order{
		ID:              r.ID,
		OrderNumber:     r.OrderNumber,
		TotalAmount:     r.TotalAmount,
		OrderStatus:     r.OrderStatus,
		PaymentStatus:   r.PaymentStatus,
		ShippingAddress: r.ShippingAddress,
		IsDropship:      r.IsDropship,
		TrackingLink:    r.TrackingLink,
		TrackingID:      r.TrackingID,
		InvoiceURL:      r.InvoiceURL,
		Items:           make([]entity.OrderItem, 0, len(r.Products)),
	}
	if o.ID == "" {
		o.ID = r.AltID
	}
	if o.OrderStatus == "" {
		o.OrderStatus = r.Status
	}
	if quote, ok := decodeRef(firstPresent(r.Quote, r.QuoteID)); ok {
		o.QuoteID = quote.id()
	}
	if r.Dropship != nil {
		o.Dropship = &entity.DropshipInfo{
			CustomerName:  r.Dropship.CustomerName,
			CustomerPhone: r.Dropship.CustomerPhone,
			CustomerEmail: r.Dropship.CustomerEmail,
			Address:       r.Dropship.Address,
		}
	}
	for _, item := range r.Products {
		oi := entity.OrderItem{
			Quantity:      item.Quantity,
			Price:         item.Price,
			SerialNumbers: item.SerialNumbers,
		}
		if product, ok := decodeRef(firstPresent(item.Product, item.ProductID)); ok {
			oi.ProductID = product.id()
		}
		o.Items = append(o.Items, oi)
	}
	return o
}
