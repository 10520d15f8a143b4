package model

// MenuSequence is the last order number issued for a menu. ShortCode is
// stored upper-cased so case variants of a code share one counter.
type MenuSequence struct {
	ShortCode string `gorm:"primaryKey;size:32"`
	Seq       int64  `gorm:"not null"`
}
