package model

import "time"

// Dataset describes one uploaded file and the storage table that holds its rows.
type Dataset struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"-"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	StorageTable     string    `gorm:"column:database_table_name;size:255;not null;uniqueIndex" json:"-"`
	ObjectKey        string    `gorm:"size:512" json:"-"`
	RowCount         int64     `gorm:"not null;default:0" json:"row_count"`
	ColumnCount      int       `gorm:"not null;default:0" json:"column_count"`
	CreatedAt        time.Time `gorm:"column:upload_timestamp" json:"upload_timestamp"`
}
