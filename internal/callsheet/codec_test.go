package callsheet

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func TestEncodeJobRowColumnOrder(t *testing.T) {
	row := EncodeJobRow(Payload{
		"name":           "Ada Lovelace",
		"email":          "ada@example.com",
		"phone_number":   "555-1234",
		"service_type":   "Boiler repair",
		"preferred_time": "Tuesday 10am",
		"location_type":  "Residential",
		"location":       "12 Analytical Way",
		"call_duration":  float64(184),
	}, fixedNow)

	assert.Equal(t, []string{
		"2026-03-14T09:26:53.589Z",
		"Ada Lovelace",
		"ada@example.com",
		"555-1234",
		"Boiler repair",
		"Tuesday 10am",
		"Residential",
		"12 Analytical Way",
		StatusBooked,
		"184",
	}, row)
}

func TestEncodeJobRowMissingFieldsAreEmpty(t *testing.T) {
	row := EncodeJobRow(Payload{"name": "Ada"}, fixedNow)
	require.Len(t, row, jobColumnCount)
	for i, cell := range row {
		switch i {
		case jobColTimestamp, jobColName, jobColStatus:
			assert.NotEmpty(t, cell, "column %d", i)
		default:
			assert.Empty(t, cell, "column %d", i)
		}
	}
}

func TestEncodeJobRowTimestampIsISO8601(t *testing.T) {
	before := time.Now().Add(-time.Second)
	row := EncodeJobRow(Payload{}, time.Now())
	parsed, err := time.Parse(time.RFC3339Nano, row[jobColTimestamp])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, 5*time.Second)
	assert.True(t, parsed.After(before))
}

func TestPreferredTimeHistoricalSpellingWins(t *testing.T) {
	p := Payload{"preferred_Time": "Monday 9am", "preferred_time": "Friday 4pm"}
	assert.Equal(t, "Monday 9am", p.PreferredTime())
	assert.Equal(t, "Friday 4pm", Payload{"preferred_time": "Friday 4pm"}.PreferredTime())
	assert.Equal(t, "Friday 4pm", Payload{"preferred_Time": "", "preferred_time": "Friday 4pm"}.PreferredTime())
	assert.Equal(t, "Monday 9am", EncodeJobRow(p, fixedNow)[jobColPreferredTime])
}

func TestPayloadStringFalsyValues(t *testing.T) {
	p := Payload{
		"nil":     nil,
		"empty":   "",
		"zero":    float64(0),
		"false":   false,
		"true":    true,
		"number":  json.Number("42"),
		"zeroNum": json.Number("0"),
		"float":   12.5,
		"object":  map[string]any{"a": "b"},
	}
	assert.Equal(t, "", p.String("nil"))
	assert.Equal(t, "", p.String("empty"))
	assert.Equal(t, "", p.String("zero"))
	assert.Equal(t, "", p.String("false"))
	assert.Equal(t, "", p.String("zeroNum"))
	assert.Equal(t, "", p.String("missing"))
	assert.Equal(t, "true", p.String("true"))
	assert.Equal(t, "42", p.String("number"))
	assert.Equal(t, "12.5", p.String("float"))
	assert.Equal(t, `{"a":"b"}`, p.String("object"))
	assert.Equal(t, "", Payload(nil).String("name"))
}

func TestEncodeJobRowKeepsExplicitStatus(t *testing.T) {
	row := EncodeJobRow(Payload{"appointment_status": "Tentative"}, fixedNow)
	assert.Equal(t, "Tentative", row[jobColStatus])
}

func TestEncodeEmergencyRow(t *testing.T) {
	row := EncodeEmergencyRow(Payload{
		"name":              "Grace",
		"phone_number":      "555-0000",
		"location":          "Dock 4",
		"emergency_details": "Gas smell",
		"call_duration":     "61",
	}, fixedNow)
	assert.Equal(t, []string{"2026-03-14T09:26:53.589Z", "Grace", "555-0000", "Dock 4", "Gas smell", "61"}, row)
}

func TestEncodeInquiryRowFallsBackToServiceType(t *testing.T) {
	withDetails := EncodeInquiryRow(Payload{"inquiry_details": "Pricing", "service_type": "Install"}, fixedNow)
	assert.Equal(t, "Pricing", withDetails[4])

	withService := EncodeInquiryRow(Payload{"service_type": "Install"}, fixedNow)
	assert.Equal(t, "Install", withService[4])
	assert.Len(t, withService, len(inquiryHeader))
}

func TestDecodeJobShortRow(t *testing.T) {
	job := DecodeJob([]string{"ts", "Ada", "", "555-1234"})
	assert.Equal(t, "Ada", job.Name)
	assert.Equal(t, "555-1234", job.PhoneNumber)
	assert.Empty(t, job.AppointmentStatus)
	assert.Empty(t, job.CallDuration)

	full := DecodeJob(EncodeJobRow(Payload{"name": "Ada", "phone_number": "555-1234", "preferred_Time": "noon"}, fixedNow))
	assert.Equal(t, "noon", full.PreferredTime)
	assert.Equal(t, StatusBooked, full.AppointmentStatus)
}
