package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// CreateOrderRequest is the payload for POST /orders. Ownership is
// never client-supplied; it always comes from the authenticated caller.
type CreateOrderRequest struct {
	ProductName string  `json:"product_name"`
	Amount      float64 `json:"amount"`
}

// Validate enforces field constraints on order creation input.
func (r CreateOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Amount, validation.Required, validation.Min(0.0).Exclusive()),
	)
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ProductName string    `json:"product_name"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrderListResponse wraps a user's orders with a total count.
type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}
