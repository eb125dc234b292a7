package domain

import (
	"time"
)

// InstrumentInfo caches metadata for one trading symbol between runs.
// The symbol universe is rebuilt from every live snapshot; this record only
// carries the bits worth keeping across restarts.
type InstrumentInfo struct {
	Symbol     string    `gorm:"primaryKey" json:"symbol"`
	Currency   string    `json:"currency"` // Base currency code, e.g. "BTC"
	IconPath   string    `json:"icon_path"`
	IsActive   bool      `json:"is_active" gorm:"index"`   // Seen in the latest snapshot
	IsFavorite bool      `json:"is_favorite" gorm:"index"` // User favorite status
	LastSeenAt time.Time `json:"last_seen_at"`             // Last snapshot that listed it
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
