package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evanhu96/load-management-app/internal/datastore/entities"
	"github.com/evanhu96/load-management-app/internal/profit"
)

// LoadInput is the boundary representation of a load. Collectors and API
// clients send loosely typed JSON (rates as numbers or "$1,500" strings,
// deadhead miles as numbers or numeric strings), so the flexible fields are
// declared as any and coerced during validation.
type LoadInput struct {
	Hash         string `json:"hash"`
	Rate         any    `json:"rate"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Dates        string `json:"dates"`
	Date         string `json:"date"` // alias accepted from older collectors
	Company      string `json:"company"`
	Contact      string `json:"contact"`
	Trip         any    `json:"trip"`
	Age          any    `json:"age"`
	DHO          any    `json:"dho"`
	DHD          any    `json:"dhd"`
	Truck        any    `json:"truck"`
	Website      string `json:"website"`
	Equipment    string `json:"equipment"`
	ClickDetails string `json:"clickDetails"`
	Source       string `json:"source"`
}

// Validate checks an input against the ingestion rules and returns the list
// of violations, empty when the input is acceptable.
func (in *LoadInput) Validate() []string {
	var errs []string

	if in.Hash == "" {
		errs = append(errs, "Hash is required and must be a string")
	}
	if in.Origin == "" {
		errs = append(errs, "Origin is required and must be a string")
	}
	if in.Destination == "" {
		errs = append(errs, "Destination is required and must be a string")
	}

	switch in.Rate.(type) {
	case nil:
		errs = append(errs, "Rate is required and must be a number or string")
	case string, float64, float32, int, int64:
		if rate, ok := parseRate(in.Rate); !ok || rate < 0 {
			errs = append(errs, "Rate must be a valid positive number")
		}
	default:
		errs = append(errs, "Rate is required and must be a number or string")
	}

	if truck, ok := coerceInt(in.Truck); !ok || (truck != 1 && truck != 2) {
		errs = append(errs, "Truck must be 1 or 2")
	}

	if in.DHO != nil {
		if dho, ok := coerceInt(in.DHO); !ok || dho < 0 {
			errs = append(errs, "Deadhead out must be a non-negative number")
		}
	}
	if in.DHD != nil {
		if dhd, ok := coerceInt(in.DHD); !ok || dhd < 0 {
			errs = append(errs, "Deadhead destination must be a non-negative number")
		}
	}

	return errs
}

// ToEntity converts a validated input to its canonical stored form. The
// rate is normalized to a number and the source defaults to defaultSource.
func (in *LoadInput) ToEntity(defaultSource string) *entities.Load {
	dates := in.Dates
	if dates == "" {
		dates = in.Date
	}
	source := in.Source
	if source == "" {
		source = defaultSource
	}
	dho, _ := coerceInt(in.DHO)
	dhd, _ := coerceInt(in.DHD)
	truck, _ := coerceInt(in.Truck)

	return &entities.Load{
		Hash:         in.Hash,
		Rate:         profit.NormalizeRate(in.Rate),
		Origin:       in.Origin,
		Destination:  in.Destination,
		Dates:        dates,
		Company:      in.Company,
		Contact:      in.Contact,
		Trip:         coerceString(in.Trip),
		Age:          coerceString(in.Age),
		DHO:          dho,
		DHD:          dhd,
		Truck:        truck,
		Website:      in.Website,
		Equipment:    in.Equipment,
		ClickDetails: in.ClickDetails,
		Source:       source,
		Active:       true,
	}
}

// parseRate reports whether the value parses as a rate at all. Unlike
// profit.NormalizeRate it distinguishes "not parseable" from zero.
func parseRate(v any) (float64, bool) {
	switch rate := v.(type) {
	case float64:
		return rate, true
	case float32:
		return float64(rate), true
	case int:
		return float64(rate), true
	case int64:
		return float64(rate), true
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "").Replace(rate)
		parsed, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// coerceInt accepts JSON numbers and numeric strings.
func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// coerceString renders numbers and strings alike; collectors send trip and
// age as either.
func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", s)
	}
}
