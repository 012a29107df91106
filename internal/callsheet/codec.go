package callsheet

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Payload is the loosely typed field set a voice agent sends with an event.
type Payload map[string]any

// String returns the field rendered as a cell value. Missing and falsy
// values (nil, "", 0, false) render as the empty string.
func (p Payload) String(key string) string {
	if p == nil {
		return ""
	}
	return cellString(p[key])
}

func (p Payload) Has(key string) bool {
	return p.String(key) != ""
}

// PreferredTime accepts both spellings; preferred_Time is the older one and
// wins when both are set.
func (p Payload) PreferredTime() string {
	if v := p.String("preferred_Time"); v != "" {
		return v
	}
	return p.String("preferred_time")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func cellString(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		if typed {
			return "true"
		}
		return ""
	case json.Number:
		if f, err := typed.Float64(); err == nil && f == 0 {
			return ""
		}
		return typed.String()
	case float64:
		if typed == 0 {
			return ""
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return cellString(float64(typed))
	case int:
		return cellString(float64(typed))
	case int64:
		if typed == 0 {
			return ""
		}
		return strconv.FormatInt(typed, 10)
	case fmt.Stringer:
		return typed.String()
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(data)
	}
}

// Timestamp renders t the way the first column of every table stores it.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func EncodeJobRow(p Payload, now time.Time) []string {
	return []string{
		Timestamp(now),
		p.String("name"),
		p.String("email"),
		p.String("phone_number"),
		p.String("service_type"),
		p.PreferredTime(),
		p.String("location_type"),
		p.String("location"),
		firstNonEmpty(p.String("appointment_status"), StatusBooked),
		p.String("call_duration"),
	}
}

func EncodeEmergencyRow(p Payload, now time.Time) []string {
	return []string{
		Timestamp(now),
		p.String("name"),
		p.String("phone_number"),
		p.String("location"),
		p.String("emergency_details"),
		p.String("call_duration"),
	}
}

func EncodeInquiryRow(p Payload, now time.Time) []string {
	return []string{
		Timestamp(now),
		p.String("name"),
		p.String("phone_number"),
		p.String("location"),
		firstNonEmpty(p.String("inquiry_details"), p.String("service_type")),
		p.String("call_duration"),
	}
}

// Job is a decoded Jobs row.
type Job struct {
	Timestamp         string `json:"timestamp"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PhoneNumber       string `json:"phone_number"`
	ServiceType       string `json:"service_type"`
	PreferredTime     string `json:"preferred_time"`
	LocationType      string `json:"location_type"`
	Location          string `json:"location"`
	AppointmentStatus string `json:"appointment_status"`
	CallDuration      string `json:"call_duration"`
}

// DecodeJob maps a Jobs row back to named fields. Short rows, as returned by
// backends that trim trailing empty cells, decode with empty fields.
func DecodeJob(row []string) Job {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return Job{
		Timestamp:         cell(jobColTimestamp),
		Name:              cell(jobColName),
		Email:             cell(jobColEmail),
		PhoneNumber:       cell(jobColPhoneNumber),
		ServiceType:       cell(jobColServiceType),
		PreferredTime:     cell(jobColPreferredTime),
		LocationType:      cell(jobColLocationType),
		Location:          cell(jobColLocation),
		AppointmentStatus: cell(jobColStatus),
		CallDuration:      cell(jobColCallDuration),
	}
}
