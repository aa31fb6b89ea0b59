package entities

import "time"

// TruckConfig is the per-truck cost and alert-threshold profile. The fleet
// has exactly two trucks, so TruckID is constrained to 1 or 2 at the
// validation layer.
type TruckConfig struct {
	TruckID              int       `gorm:"primaryKey" json:"truck_id"`
	MPG                  float64   `gorm:"not null;default:6.5" json:"mpg"`
	FuelCostPerGallon    float64   `gorm:"not null;default:3.5" json:"fuel_cost_per_gallon"`
	CostPerMile          float64   `gorm:"not null;default:1.85" json:"cost_per_mile"`
	AlertProfitThreshold float64   `gorm:"not null;default:800" json:"alert_profit_threshold"`
	AlertMileThreshold   int       `gorm:"not null;default:300" json:"alert_mile_threshold"`
	PhoneNumber          string    `gorm:"size:50;default:''" json:"phone_number"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (TruckConfig) TableName() string {
	return "truck_configs"
}

// DefaultTruckConfig returns the hard-coded defaults for a truck. The two
// trucks carry slightly different cost profiles.
func DefaultTruckConfig(truckID int) *TruckConfig {
	cfg := &TruckConfig{
		TruckID:              truckID,
		MPG:                  6.5,
		FuelCostPerGallon:    3.50,
		CostPerMile:          1.85,
		AlertProfitThreshold: 800,
		AlertMileThreshold:   300,
	}
	if truckID == 2 {
		cfg.MPG = 6.2
		cfg.CostPerMile = 1.90
		cfg.AlertProfitThreshold = 750
		cfg.AlertMileThreshold = 350
	}
	return cfg
}
