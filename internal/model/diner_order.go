package model

import (
	"encoding/json"
	"time"
)

// DinerOrder is an order placed through a menu session.
type DinerOrder struct {
	ID              int64       `gorm:"primaryKey;autoIncrement"`
	SessionToken    string      `gorm:"index;size:64;not null"`
	ShortCode       string      `gorm:"index;size:32;not null"`
	OrderNumber     string      `gorm:"uniqueIndex;size:48;not null"`
	Status          OrderStatus `gorm:"index;size:16;not null"`
	ItemsJSON       []byte      `gorm:"column:items;not null"`
	Total           float64     `gorm:"not null"`
	Currency        string      `gorm:"size:8;not null"`
	TableIdentifier *string     `gorm:"size:32"`
	Notes           *string
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time
	PreparingAt     *time.Time
	ReadyAt         *time.Time
	DeliveredAt     *time.Time
}

// Summary converts the record to the diner-facing shape. Items that fail
// to decode are reported as an empty list.
func (o DinerOrder) Summary() OrderSummary {
	var items []OrderLineItem
	if len(o.ItemsJSON) > 0 {
		_ = json.Unmarshal(o.ItemsJSON, &items)
	}
	if items == nil {
		items = []OrderLineItem{}
	}
	return OrderSummary{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Items:           items,
		Total:           o.Total,
		Currency:        o.Currency,
		TableIdentifier: o.TableIdentifier,
		Notes:           o.Notes,
		IsActive:        o.Status.IsActive(),
		CreatedAt:       o.CreatedAt,
		PreparingAt:     o.PreparingAt,
		ReadyAt:         o.ReadyAt,
		DeliveredAt:     o.DeliveredAt,
	}
}
