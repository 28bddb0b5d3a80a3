package model

import "time"

// QueryLog records the outcome of one question. ID is a ULID.
type QueryLog struct {
	ID         string    `gorm:"primaryKey;size:26" json:"id"`
	DatasetID  uint      `gorm:"not null;index" json:"dataset_id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Question   string    `gorm:"type:text;not null" json:"question"`
	SQLQuery   string    `gorm:"type:text" json:"sql_query"`
	Outcome    string    `gorm:"size:32;not null;index" json:"outcome"`
	IsChart    bool      `gorm:"not null;default:false" json:"is_chart"`
	DurationMS int64     `gorm:"not null" json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
