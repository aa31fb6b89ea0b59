package entities

import "time"

// Alert delivery statuses.
const (
	AlertStatusSent   = "sent"
	AlertStatusFailed = "failed"
	AlertStatusLogged = "logged"
)

// TestAlertHash is the sentinel load hash recorded for manual test alerts.
const TestAlertHash = "TEST"

// AlertRecord is the audit trail of one dispatched (or logged) notification.
// At most one record with a real load hash should exist before a new alert is
// attempted for that hash; the engine enforces this with a pre-check query.
type AlertRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LoadHash    string    `gorm:"size:255;not null;index" json:"load_hash"`
	TruckID     int       `gorm:"not null;index" json:"truck_id"`
	Profit      float64   `json:"profit"`
	Miles       int       `json:"miles"`
	PhoneNumber string    `gorm:"size:50;default:''" json:"phone_number"`
	Message     string    `gorm:"type:text;default:''" json:"message"`
	Status      string    `gorm:"size:20;not null;default:'sent'" json:"status"`
	SentAt      time.Time `gorm:"autoCreateTime;index" json:"sent_at"`
}

// TableName returns the table name for GORM.
func (AlertRecord) TableName() string {
	return "alert_history"
}
