package entities

import "time"

// SystemSetting is one key/value pair of runtime configuration. Only the keys
// listed in RecognizedSettings are accepted.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"size:500;default:''" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (SystemSetting) TableName() string {
	return "system_settings"
}

// Recognized system setting keys.
const (
	SettingSMSEnabled           = "sms_enabled"
	SettingDefaultPhoneNumber   = "default_phone_number"
	SettingAlertCooldownMinutes = "alert_cooldown_minutes"
	SettingAutoRefreshInterval  = "auto_refresh_interval"
	SettingMaxLoadsPerPage      = "max_loads_per_page"
)

// DefaultSystemSettings returns the settings map applied when a key has no
// stored value.
func DefaultSystemSettings() map[string]string {
	return map[string]string{
		SettingSMSEnabled:           "false",
		SettingDefaultPhoneNumber:   "",
		SettingAlertCooldownMinutes: "60",
		SettingAutoRefreshInterval:  "30",
		SettingMaxLoadsPerPage:      "100",
	}
}
