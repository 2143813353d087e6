package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// MaxBanDays is the longest timed ban a time.Duration can hold. Longer bans
// are requested as permanent.
const MaxBanDays = float64(math.MaxInt64 / int64(24*time.Hour))

// BanRequest is the body of POST /api/ban. With neither Until nor Days the
// ban is permanent.
type BanRequest struct {
	TargetRef
	Until  *Timestamp `json:"until"`
	Days   *float64   `json:"days"`
	Reason string     `json:"reason"`
}

// EndsAt resolves the ban end relative to now. nil means permanent.
func (r *BanRequest) EndsAt(now time.Time) (*time.Time, error) {
	switch {
	case r.Until != nil:
		t := r.Until.Time
		if !t.After(now) {
			return nil, fmt.Errorf("ban end must be in the future")
		}
		return &t, nil
	case r.Days != nil:
		if *r.Days <= 0 {
			return nil, fmt.Errorf("ban days must be positive")
		}
		if *r.Days > MaxBanDays {
			return nil, fmt.Errorf("ban days must not exceed %.0f", MaxBanDays)
		}
		t := now.Add(time.Duration(*r.Days * float64(24*time.Hour)))
		return &t, nil
	default:
		return nil, nil
	}
}

// Timestamp decodes either an RFC 3339 string or a number of unix
// milliseconds.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	if ms >= math.MaxInt64 || ms <= math.MinInt64 {
		return fmt.Errorf("timestamp %s out of range", data)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}
