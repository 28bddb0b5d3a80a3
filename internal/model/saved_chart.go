package model

import "time"

type SavedChart struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DatasetID uint      `gorm:"not null;index" json:"dataset_id"`
	Label     string    `gorm:"size:255;not null" json:"label"`
	ChartData string    `gorm:"type:text;not null" json:"chart_data"`
	CreatedAt time.Time `json:"created_at"`
}
