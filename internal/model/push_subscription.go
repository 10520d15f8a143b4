package model

import "time"

// PushSubscription holds the information for a browser push subscription
// bound to a diner session.
type PushSubscription struct {
	Endpoint     string    `gorm:"primaryKey"`
	P256DH       string    `gorm:"column:p256dh;not null"`
	Auth         string    `gorm:"not null"`
	SessionToken string    `gorm:"index;size:64;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}
