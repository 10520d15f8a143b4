package model

import "time"

// MenuSession is the server-side record behind a diner session token.
type MenuSession struct {
	Token      string    `gorm:"primaryKey;size:64"`
	ShortCode  string    `gorm:"index:idx_session_device_menu;size:32;not null"`
	DeviceID   string    `gorm:"index:idx_session_device_menu;size:64;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	LastSeenAt time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`

	// Associations
	Orders []DinerOrder `gorm:"foreignKey:SessionToken;references:Token"`
}

// Expired reports whether the session is past its expiry at now.
func (s MenuSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
