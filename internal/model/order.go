package model

import "time"

// OrderStatus is the kitchen-facing lifecycle state of a diner order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// IsActive reports whether the status is non-terminal.
func (s OrderStatus) IsActive() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are expected.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

// Variation is the selected variant of a menu item. Price is a delta
// over the item's unit price.
type Variation struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OrderLineItem is one cart line as submitted and as echoed back in
// order summaries.
type OrderLineItem struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	Price     float64    `json:"price"`
	Variation *Variation `json:"variation,omitempty"`
}

// LineTotal is quantity times the unit price plus the variation delta.
func (li OrderLineItem) LineTotal() float64 {
	unit := li.Price
	if li.Variation != nil {
		unit += li.Variation.Price
	}
	return unit * float64(li.Quantity)
}

// OrderSummary is a placed order as seen by the diner.
type OrderSummary struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Status          OrderStatus     `json:"status"`
	Items           []OrderLineItem `json:"items"`
	Total           float64         `json:"total"`
	Currency        string          `json:"currency"`
	TableIdentifier *string         `json:"table_identifier,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	PreparingAt     *time.Time      `json:"preparing_at,omitempty"`
	ReadyAt         *time.Time      `json:"ready_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
}

// ActiveCount returns the number of orders flagged active.
func ActiveCount(orders []OrderSummary) int {
	n := 0
	for _, o := range orders {
		if o.IsActive {
			n++
		}
	}
	return n
}
