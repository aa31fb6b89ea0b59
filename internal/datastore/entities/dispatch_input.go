package entities

import "time"

// DispatchInput is a lane request entered by a dispatcher: where they want a
// truck to go and the profit they are targeting. Collectors use the latest
// entry to steer what they look for.
type DispatchInput struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Origin       string    `gorm:"size:255;default:''" json:"origin"`
	Destination  string    `gorm:"size:255;default:''" json:"destination"`
	Miles        int       `gorm:"not null;default:0" json:"miles"`
	TargetProfit int       `gorm:"not null;default:0" json:"targetProfit"`
	DispatchUser string    `gorm:"size:100;default:'dispatch'" json:"dispatchUser"`
	Timestamp    string    `gorm:"size:50;not null" json:"timestamp"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for GORM.
func (DispatchInput) TableName() string {
	return "dispatch_inputs"
}
