// Package collector watches scraper output files and forwards the loads
// they contain to the management server.
package collector

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evanhu96/load-management-app/internal/ingest"
	"github.com/evanhu96/load-management-app/internal/profit"
)

// rawRecord is one loosely typed load entry as scrapers write it. Numeric
// fields arrive as numbers or strings depending on the scraper version.
type rawRecord struct {
	Hash         string `json:"hash"`
	Rate         any    `json:"rate"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Dates        string `json:"dates"`
	Date         string `json:"date"`
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

// ParseLoadFile decodes a scraper output file into load inputs ready to send.
// Files come in two shapes: an array of records, or an object keyed by load
// hash. Records that fail validation are skipped, not fatal.
func ParseLoadFile(data []byte, filePath string) ([]*ingest.LoadInput, error) {
	fileName := filepath.Base(filePath)

	var records []keyedRecord
	var asArray []rawRecord
	if err := json.Unmarshal(data, &asArray); err == nil {
		for _, rec := range asArray {
			records = append(records, keyedRecord{record: rec})
		}
	} else {
		var asObject map[string]rawRecord
		if err := json.Unmarshal(data, &asObject); err != nil {
			return nil, fmt.Errorf("unrecognized load file format in %s: %w", fileName, err)
		}
		for key, rec := range asObject {
			records = append(records, keyedRecord{key: key, record: rec})
		}
	}

	loads := make([]*ingest.LoadInput, 0, len(records))
	for _, kr := range records {
		if load := normalizeRecord(kr, fileName); load != nil {
			loads = append(loads, load)
		}
	}
	return loads, nil
}

type keyedRecord struct {
	key    string
	record rawRecord
}

// normalizeRecord converts one raw entry to a LoadInput, or nil when the
// record cannot be salvaged. The object key doubles as the hash when the
// record has none; as a last resort a hash is synthesized so a malformed
// scraper row still makes it to the server for review.
func normalizeRecord(kr keyedRecord, fileName string) *ingest.LoadInput {
	rec := kr.record

	hash := rec.Hash
	if hash == "" {
		hash = kr.key
	}
	if hash == "" {
		hash = fmt.Sprintf("%s-%d-%d", fileName, time.Now().UnixMilli(), rand.IntN(1_000_000))
	}

	rate := profit.NormalizeRate(rec.Rate)
	truck := coerceIntDefault(rec.Truck, 1)

	load := &ingest.LoadInput{
		Hash:         hash,
		Rate:         rate,
		Origin:       cleanString(rec.Origin),
		Destination:  cleanString(rec.Destination),
		Dates:        firstNonEmpty(rec.Dates, rec.Date),
		Company:      cleanString(rec.Company),
		Contact:      cleanString(rec.Contact),
		Trip:         rec.Trip,
		Age:          rec.Age,
		DHO:          coerceIntDefault(rec.DHO, 0),
		DHD:          coerceIntDefault(rec.DHD, 0),
		Truck:        truck,
		Website:      cleanString(rec.Website),
		Equipment:    cleanString(rec.Equipment),
		ClickDetails: cleanString(rec.ClickDetails),
		Source:       fmt.Sprintf("%s-collector", fileName),
	}

	if load.Origin == "" || load.Destination == "" || rate < 0 {
		return nil
	}
	if truck != 1 && truck != 2 {
		return nil
	}
	return load
}

// cleanString trims and collapses runs of whitespace.
func cleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// coerceIntDefault accepts JSON numbers and numeric strings, falling back to
// def for anything else.
func coerceIntDefault(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}
