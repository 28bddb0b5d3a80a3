package model

import "time"

// ChatMessage is one conversation turn on a dataset.
type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DatasetID  uint      `gorm:"not null;index" json:"-"`
	IsFromUser bool      `gorm:"not null" json:"is_from_user"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	CreatedAt  time.Time `gorm:"column:timestamp;index" json:"timestamp"`
}
