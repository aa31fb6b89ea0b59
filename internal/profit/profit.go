// Package profit computes per-load profitability from truck cost profiles.
// All functions are pure; monetary results are rounded to 2 decimal places.
package profit

import (
	"math"
	"strconv"
	"strings"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
)

// Fallback thresholds applied when a truck config leaves them unset.
const (
	DefaultProfitThreshold = 800
	DefaultMileThreshold   = 300
)

// Defaults applied when cost parameters are unset on a truck config.
const (
	defaultMPG               = 6.5
	defaultFuelCostPerGallon = 3.50
	defaultCostPerMile       = 1.85
)

// Breakdown is the full profitability picture for one load.
type Breakdown struct {
	Rate          float64 `json:"rate"`
	Miles         int     `json:"miles"`
	FuelCost      float64 `json:"fuelCost"`
	OperatingCost float64 `json:"operatingCost"`
	TotalCosts    float64 `json:"totalCosts"`
	Profit        float64 `json:"profit"`
	ProfitMargin  float64 `json:"profitMargin"`
	ProfitPerMile float64 `json:"profitPerMile"`
}

// Efficiency extends Breakdown with utilization metrics.
type Efficiency struct {
	Breakdown
	LoadedMiles     int     `json:"loadedMiles"`
	EmptyMiles      int     `json:"emptyMiles"`
	UtilizationRate float64 `json:"utilizationRate"`
	RevenuePerMile  float64 `json:"revenuePerMile"`
}

// TotalMiles sums deadhead-out and deadhead-destination miles, treating
// negative inputs as zero.
func TotalMiles(dho, dhd int) int {
	return nonNegative(dho) + nonNegative(dhd)
}

// NormalizeRate parses a rate that may arrive as a number or a string with
// currency formatting ("$1,500"). Non-numeric or missing input yields 0.
func NormalizeRate(rate any) float64 {
	switch v := rate.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "").Replace(v)
		parsed, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// FuelCost computes the fuel expense for the given mileage.
func FuelCost(miles int, cfg *entities.TruckConfig) float64 {
	mpg := cfg.MPG
	if mpg <= 0 {
		mpg = defaultMPG
	}
	fuelPrice := cfg.FuelCostPerGallon
	if fuelPrice <= 0 {
		fuelPrice = defaultFuelCostPerGallon
	}
	return (float64(miles) / mpg) * fuelPrice
}

// OperatingCost computes the per-mile operating expense for the given mileage.
func OperatingCost(miles int, cfg *entities.TruckConfig) float64 {
	costPerMile := cfg.CostPerMile
	if costPerMile <= 0 {
		costPerMile = defaultCostPerMile
	}
	return float64(miles) * costPerMile
}

// Compute returns the profit breakdown for a load against a truck config.
// ProfitMargin is 0 when rate <= 0 and ProfitPerMile is 0 when miles is 0,
// so neither can produce NaN or infinity.
func Compute(load *entities.Load, cfg *entities.TruckConfig) Breakdown {
	rate := load.Rate
	miles := TotalMiles(load.DHO, load.DHD)
	fuelCost := FuelCost(miles, cfg)
	operatingCost := OperatingCost(miles, cfg)
	totalCosts := fuelCost + operatingCost
	prof := rate - totalCosts

	var margin float64
	if rate > 0 {
		margin = (prof / rate) * 100
	}
	var perMile float64
	if miles > 0 {
		perMile = prof / float64(miles)
	}

	return Breakdown{
		Rate:          rate,
		Miles:         miles,
		FuelCost:      Round2(fuelCost),
		OperatingCost: Round2(operatingCost),
		TotalCosts:    Round2(totalCosts),
		Profit:        Round2(prof),
		ProfitMargin:  Round2(margin),
		ProfitPerMile: Round2(perMile),
	}
}

// ComputeEfficiency returns the breakdown plus utilization metrics derived
// from loaded vs. total miles.
func ComputeEfficiency(load *entities.Load, cfg *entities.TruckConfig, loadedMiles int) Efficiency {
	b := Compute(load, cfg)
	loaded := nonNegative(loadedMiles)
	empty := b.Miles - loaded

	var utilization float64
	if b.Miles > 0 {
		utilization = (float64(loaded) / float64(b.Miles)) * 100
	}
	var revenuePerMile float64
	if b.Miles > 0 {
		revenuePerMile = b.Rate / float64(b.Miles)
	}

	return Efficiency{
		Breakdown:       b,
		LoadedMiles:     loaded,
		EmptyMiles:      empty,
		UtilizationRate: Round2(utilization),
		RevenuePerMile:  Round2(revenuePerMile),
	}
}

// ShouldAlert reports whether a load clears the truck's profit threshold
// without exceeding its mileage threshold. Unset thresholds fall back to
// DefaultProfitThreshold and DefaultMileThreshold.
func ShouldAlert(load *entities.Load, cfg *entities.TruckConfig) bool {
	b := Compute(load, cfg)

	profitThreshold := cfg.AlertProfitThreshold
	if profitThreshold <= 0 {
		profitThreshold = DefaultProfitThreshold
	}
	mileThreshold := cfg.AlertMileThreshold
	if mileThreshold <= 0 {
		mileThreshold = DefaultMileThreshold
	}

	return b.Profit >= profitThreshold && b.Miles <= mileThreshold
}

// Round2 rounds half-up to 2 decimal places on the scaled integer.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
