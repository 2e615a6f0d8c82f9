package datastore

import "time"

// Preference is one persisted key-value entry.
type Preference struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
