package service

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

const expiryMessage = "expiryAt must be a timestamp in milliseconds or an RFC 3339 date"

// Expiry captures the raw expiryAt field so that "absent", "null" and a value can be told apart.
type Expiry struct {
	Present bool
	raw     json.RawMessage
}

func (e *Expiry) UnmarshalJSON(b []byte) error {
	e.Present = true
	e.raw = append(e.raw[:0], b...)
	return nil
}

// Resolve interprets the field. It returns clear=true for null or an empty string,
// and the UTC instant for epoch milliseconds, RFC 3339 timestamps and YYYY-MM-DD dates.
func (e Expiry) Resolve() (at *time.Time, clear bool, err error) {
	if !e.Present {
		return nil, false, nil
	}
	raw := bytes.TrimSpace(e.raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false, invalid("expiryAt", expiryMessage)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, true, nil
		}
		t, err := parseExpiryString(s)
		if err != nil || t.Before(minExpiry) {
			return nil, false, invalid("expiryAt", expiryMessage)
		}
		return &t, false, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var ms float64
		if err := json.Unmarshal(raw, &ms); err != nil || ms < minEpochMillis || ms > maxEpochMillis {
			return nil, false, invalid("expiryAt", expiryMessage)
		}
		t := time.UnixMilli(int64(ms)).UTC()
		return &t, false, nil
	}
	return nil, false, invalid("expiryAt", expiryMessage)
}

// Expiries must fall between 0001-01-01 UTC and the largest JavaScript date,
// both of which postgres timestamptz can hold.
const (
	minEpochMillis = -62135596800000
	maxEpochMillis = 8.64e15
)

var minExpiry = time.UnixMilli(minEpochMillis).UTC()

func parseExpiryString(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
