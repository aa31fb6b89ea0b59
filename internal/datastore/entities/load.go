package entities

import "time"

// Load is a freight opportunity. Hash uniquely identifies a load across
// re-submissions; ingestion upserts by hash so the same opportunity never
// produces duplicate rows.
type Load struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Hash         string    `gorm:"size:255;not null;uniqueIndex" json:"hash"`
	Rate         float64   `gorm:"not null" json:"rate"`
	Origin       string    `gorm:"size:255;not null" json:"origin"`
	Destination  string    `gorm:"size:255;not null" json:"destination"`
	Dates        string    `gorm:"size:255;default:''" json:"dates"`
	Company      string    `gorm:"size:255;default:''" json:"company"`
	Contact      string    `gorm:"size:255;default:''" json:"contact"`
	Trip         string    `gorm:"size:255;default:''" json:"trip"`
	Age          string    `gorm:"size:50;default:''" json:"age"`
	DHO          int       `gorm:"not null;default:0" json:"dho"`
	DHD          int       `gorm:"not null;default:0" json:"dhd"`
	Truck        int       `gorm:"not null;index" json:"truck"`
	Website      string    `gorm:"size:500;default:''" json:"website"`
	Equipment    string    `gorm:"size:255;default:''" json:"equipment"`
	ClickDetails string    `gorm:"type:text;default:''" json:"clickDetails"`
	Source       string    `gorm:"size:255;default:''" json:"source"`
	Active       bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Load) TableName() string {
	return "loads"
}
