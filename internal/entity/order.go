package entity

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

type Order struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"order_number"`
	Items           []OrderItem   `json:"items"`
	TotalAmount     float64       `json:"total_amount"`
	OrderStatus     string        `json:"order_status"`   // e.g., "processing", "shipped", "delivered"
	PaymentStatus   string        `json:"payment_status"` // e.g., "pending", "paid", "failed"
	ShippingAddress string        `json:"shipping_address"`
	IsDropship      bool          `json:"is_dropship"`
	Dropship        *DropshipInfo `json:"dropship,omitempty"`
	TrackingLink    string        `json:"tracking_link,omitempty"`
	TrackingID      string        `json:"tracking_id,omitempty"`
	InvoiceURL      string        `json:"invoice_url,omitempty"`
	QuoteID         string        `json:"quote_id,omitempty"`
}

type OrderItem struct {
	ProductID     string   `json:"product_id"`
	Quantity      int      `json:"quantity"`
	Price         float64  `json:"price"`
	SerialNumbers []string `json:"serial_numbers,omitempty"`
}

// DropshipInfo is the end customer an order ships to directly.
type DropshipInfo struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Address       string `json:"address"`
}

// PaymentDescriptor is the gateway-side order returned with a created order.
type PaymentDescriptor struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

// CreateOrderRequest is what checkout submits for an accepted quote.
type CreateOrderRequest struct {
	Products        []OrderLine `json:"products"`
	TotalAmount     float64     `json:"totalAmount"`
	QuoteID         string      `json:"quoteId"`
	ShippingAddress string      `json:"shippingAddress"`
}

type OrderLine struct {
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type CreateOrderResponse struct {
	Order   Order             `json:"order"`
	Payment PaymentDescriptor `json:"razorpayOrder"`
}

type VerifyOrderRequest struct {
	OrderID           string `json:"orderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
}
