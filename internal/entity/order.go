package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition exists out of the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Order represents a purchase order stored in the relational database.
// Every order belongs to exactly one user; deleting the user cascades.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID          int64     `bun:",pk,autoincrement"`
	UserID      int64     `bun:"user_id,notnull"`
	ProductName string    `bun:"product_name,notnull"`
	Amount      float64   `bun:"amount,notnull"`
	Status      Status    `bun:"status,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero"`
}
