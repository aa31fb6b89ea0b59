package notification

import (
	"fmt"
	"strings"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/profit"
)

// FormatAlertMessage renders the SMS body for a high profit load.
func FormatAlertMessage(load *entities.Load, metrics profit.Breakdown) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TRUCK %d HIGH PROFIT ALERT!\n\n", load.Truck)
	fmt.Fprintf(&b, "%s -> %s\n", load.Origin, load.Destination)
	fmt.Fprintf(&b, "Profit: $%.2f\n", metrics.Profit)
	fmt.Fprintf(&b, "Rate: $%.2f\n", metrics.Rate)
	fmt.Fprintf(&b, "Miles: %d\n", metrics.Miles)
	fmt.Fprintf(&b, "Fuel: $%.2f\n", metrics.FuelCost)
	fmt.Fprintf(&b, "Operating: $%.2f\n", metrics.OperatingCost)
	fmt.Fprintf(&b, "Margin: %.1f%%\n\n", metrics.ProfitMargin)
	fmt.Fprintf(&b, "%s\n", load.Company)
	if load.Contact != "" {
		fmt.Fprintf(&b, "%s\n", load.Contact)
	}
	fmt.Fprintf(&b, "Trip: %s", load.Trip)
	return b.String()
}
