package notification

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/logger"
	"github.com/evanhu96/load-management-app/internal/profit"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func TestSanitizePhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"ten_digit_us", "5551234567", "+15551234567"},
		{"formatted_us", "(555) 123-4567", "+15551234567"},
		{"eleven_with_country_code", "15551234567", "+15551234567"},
		{"already_e164", "+15551234567", "+15551234567"},
		{"international", "+44 20 7946 0958", "+442079460958"},
		{"too_short", "12345", ""},
		{"letters_only", "call me", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePhoneNumber(tt.input))
		})
	}
}

func TestShoutrrrNotifier_UnconfiguredDegradesToLogged(t *testing.T) {
	n, err := NewShoutrrrNotifier("", 0, testLogger())
	require.NoError(t, err)
	assert.False(t, n.Configured())

	status, err := n.Send(t.Context(), "+15551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, StatusLogged, status)
}

func TestShoutrrrNotifier_MissingPhoneDegradesToLogged(t *testing.T) {
	n, err := NewShoutrrrNotifier("", 0, testLogger())
	require.NoError(t, err)

	status, err := n.Send(t.Context(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, StatusLogged, status)
}

func TestNewShoutrrrNotifier_InvalidURL(t *testing.T) {
	_, err := NewShoutrrrNotifier("not-a-service-url", 0, testLogger())
	assert.Error(t, err)
}

func TestShoutrrrNotifier_DestinationFollowsResolvedPhone(t *testing.T) {
	n, err := NewShoutrrrNotifier("ntfy://ntfy.example/{phone}", time.Second, testLogger())
	require.NoError(t, err)
	assert.True(t, n.Configured())

	s1, err := n.senderFor("+15551230001")
	require.NoError(t, err)
	s2, err := n.senderFor("+15551230002")
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)

	again, err := n.senderFor("+15551230001")
	require.NoError(t, err)
	assert.Same(t, s1, again)
}

func TestDestinationURL(t *testing.T) {
	assert.Equal(t, "ntfy://ntfy.example/15551234567",
		destinationURL("ntfy://ntfy.example/{phone}", "+15551234567"))
	assert.Equal(t, "generic://gw.example/send?to=15551234567",
		destinationURL("generic://gw.example/send?to={phone}", "+15551234567"))
	assert.Equal(t, "ntfy://ntfy.example/alerts",
		destinationURL("ntfy://ntfy.example/alerts", "+15551234567"))
}

func TestFormatAlertMessage(t *testing.T) {
	load := &entities.Load{
		Hash:        "h",
		Truck:       1,
		Origin:      "Dallas, TX",
		Destination: "Atlanta, GA",
		Company:     "Acme Freight",
		Contact:     "555-0000",
		Trip:        "780",
	}
	metrics := profit.Breakdown{
		Rate:          2000,
		Miles:         75,
		FuelCost:      40.38,
		OperatingCost: 138.75,
		TotalCosts:    179.13,
		Profit:        1820.87,
		ProfitMargin:  91.04,
	}

	msg := FormatAlertMessage(load, metrics)
	assert.Contains(t, msg, "TRUCK 1 HIGH PROFIT ALERT!")
	assert.Contains(t, msg, "Dallas, TX -> Atlanta, GA")
	assert.Contains(t, msg, "Profit: $1820.87")
	assert.Contains(t, msg, "Miles: 75")
	assert.Contains(t, msg, "Fuel: $40.38")
	assert.Contains(t, msg, "Operating: $138.75")
	assert.Contains(t, msg, "Margin: 91.0%")
	assert.Contains(t, msg, "Acme Freight")
	assert.Contains(t, msg, "Trip: 780")
}
