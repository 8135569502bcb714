package entity

import "time"

const (
	QuoteStatusPending   = "pending"
	QuoteStatusResponded = "responded"
	QuoteStatusAccepted  = "accepted"
	QuoteStatusRejected  = "rejected"
	QuoteStatusCompleted = "completed"
)

const (
	QuoteTypeStandard  = "standard"
	QuoteTypeBulkOrder = "bulk_order"
)

// Quote is a customer's request for priced products.
type Quote struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	UserName      string         `json:"user_name,omitempty"`
	UserEmail     string         `json:"user_email,omitempty"`
	UserPhone     string         `json:"user_phone,omitempty"`
	Items         []QuoteItem    `json:"items"`
	Message       string         `json:"message"`
	AdminResponse *AdminResponse `json:"admin_response,omitempty"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	OrderID       string         `json:"order_id,omitempty"`
	Type          string         `json:"type"`
}

type QuoteItem struct {
	ProductID     string      `json:"product_id"`
	Product       *ProductRef `json:"product,omitempty"` // nil when the product no longer resolves
	Quantity      int         `json:"quantity"`
	OfferedPrice  *float64    `json:"offered_price,omitempty"`
	OriginalPrice *float64    `json:"original_price,omitempty"`
}

type ProductRef struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price,omitempty"`
}

type AdminResponse struct {
	Message            string   `json:"message"`
	TotalPrice         float64  `json:"total_price"`
	DiscountPercentage *float64 `json:"discount_percentage,omitempty"`
}

// AwaitingCheckout reports an accepted quote that has no order linked yet.
func (q *Quote) AwaitingCheckout() bool {
	return q.Status == QuoteStatusAccepted && q.OrderID == ""
}

func (q *Quote) CheckedOut() bool {
	return q.OrderID != ""
}

func (q *Quote) IsBulkOrder() bool {
	return q.Type == QuoteTypeBulkOrder
}

// TotalPrice is the total the admin offered, zero before a response exists.
func (q *Quote) TotalPrice() float64 {
	if q.AdminResponse == nil {
		return 0
	}
	return q.AdminResponse.TotalPrice
}

func (i QuoteItem) Resolved() bool {
	return i.Product != nil
}
