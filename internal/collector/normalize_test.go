package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoadFile_ObjectFormat(t *testing.T) {
	data := []byte(`{
		"abc123": {
			"rate": "$1,500",
			"origin": "  Dallas,   TX ",
			"destination": "Atlanta, GA",
			"company": "Acme Freight",
			"dho": "25",
			"dhd": 50,
			"truck": 1
		}
	}`)

	loads, err := ParseLoadFile(data, "/data/loads.json")
	require.NoError(t, err)
	require.Len(t, loads, 1)

	load := loads[0]
	assert.Equal(t, "abc123", load.Hash, "object key becomes the hash")
	assert.Equal(t, 1500.0, load.Rate)
	assert.Equal(t, "Dallas, TX", load.Origin, "whitespace collapsed")
	assert.Equal(t, 25, load.DHO)
	assert.Equal(t, 50, load.DHD)
	assert.Equal(t, 1, load.Truck)
	assert.Equal(t, "loads.json-collector", load.Source)
}

func TestParseLoadFile_ArrayFormat(t *testing.T) {
	data := []byte(`[
		{"hash": "a1", "rate": 1200, "origin": "Memphis, TN", "destination": "Tulsa, OK", "truck": 2},
		{"hash": "a2", "rate": 900, "origin": "Tulsa, OK", "destination": "Dallas, TX", "truck": 1}
	]`)

	loads, err := ParseLoadFile(data, "tsLoads.json")
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, "a1", loads[0].Hash)
	assert.Equal(t, 2, loads[0].Truck)
	assert.Equal(t, "tsLoads.json-collector", loads[1].Source)
}

func TestParseLoadFile_SynthesizesHash(t *testing.T) {
	data := []byte(`[{"rate": 1200, "origin": "Memphis, TN", "destination": "Tulsa, OK", "truck": 1}]`)

	loads, err := ParseLoadFile(data, "loads.json")
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.NotEmpty(t, loads[0].Hash)
	assert.Contains(t, loads[0].Hash, "loads.json-")
}

func TestParseLoadFile_SkipsInvalidRecords(t *testing.T) {
	data := []byte(`{
		"good": {"rate": 1200, "origin": "Memphis, TN", "destination": "Tulsa, OK", "truck": 1},
		"no-origin": {"rate": 1200, "destination": "Tulsa, OK", "truck": 1},
		"bad-truck": {"rate": 1200, "origin": "Memphis, TN", "destination": "Tulsa, OK", "truck": 7}
	}`)

	loads, err := ParseLoadFile(data, "loads.json")
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.Equal(t, "good", loads[0].Hash)
}

func TestParseLoadFile_DefaultsTruckToOne(t *testing.T) {
	data := []byte(`[{"hash": "d1", "rate": 1000, "origin": "A", "destination": "B"}]`)

	loads, err := ParseLoadFile(data, "loads.json")
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.Equal(t, 1, loads[0].Truck)
}

func TestParseLoadFile_DateAlias(t *testing.T) {
	data := []byte(`[{"hash": "d2", "rate": 1000, "origin": "A", "destination": "B", "truck": 1, "date": "09/01"}]`)

	loads, err := ParseLoadFile(data, "loads.json")
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.Equal(t, "09/01", loads[0].Dates)
}

func TestParseLoadFile_RejectsGarbage(t *testing.T) {
	_, err := ParseLoadFile([]byte(`"just a string"`), "loads.json")
	assert.Error(t, err)
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Dallas, TX", cleanString("  Dallas,\t TX \n"))
	assert.Equal(t, "", cleanString("   "))
}
