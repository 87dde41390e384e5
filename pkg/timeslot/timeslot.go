// Package timeslot defines the slot value types shared across the
// retrieval and aggregation components, and the time bucketing used to
// group nearby appointment times.
package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTimeFormat indicates a time string that does not parse as
// "HH:MM" or "HH:MM:SS". It is a caller contract violation, not a
// recoverable condition.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// DefaultBucketMinutes is the bucket width used when none is configured.
const DefaultBucketMinutes = 15

// ProviderRef identifies a healthcare provider at a facility.
// Instances are created once per run from the provider directory and
// shared read-only across concurrent tasks.
type ProviderRef struct {
	// NPI is the provider's National Provider Identifier, the unique
	// provider key throughout.
	NPI string `json:"npi"`

	// DisplayName is the provider's human-readable name.
	DisplayName string `json:"display_name"`

	// Degree is the provider's credential (MD, CPNP, ...).
	Degree string `json:"degree"`

	// FacilityID is the clinic location the provider was listed under.
	FacilityID string `json:"facility_id"`
}

// String returns the rendering used in availability listings,
// e.g. "Jane Doe (MD)".
func (p ProviderRef) String() string {
	if p.Degree == "" {
		return p.DisplayName
	}
	return fmt.Sprintf("%s (%s)", p.DisplayName, p.Degree)
}

// RawSlot is one unprocessed slot as returned by a page of the remote
// API: facility, calendar date (YYYY-MM-DD) and raw time-of-day
// (HH:MM:SS). Produced and consumed within a single pagination walk.
type RawSlot struct {
	FacilityID string
	Date       string
	Time       string
}

// SlotKey is the (facility, date, time bucket) key of the availability
// index. Equality and ordering are structural.
type SlotKey struct {
	FacilityID string
	Date       string
	TimeBucket string
}

// Less orders keys by facility, then date, then bucket.
func (k SlotKey) Less(other SlotKey) bool {
	if k.FacilityID != other.FacilityID {
		return k.FacilityID < other.FacilityID
	}
	if k.Date != other.Date {
		return k.Date < other.Date
	}
	return k.TimeBucket < other.TimeBucket
}

// String returns the key in "facility/date/bucket" form, used in logs.
func (k SlotKey) String() string {
	return k.FacilityID + "/" + k.Date + "/" + k.TimeBucket
}

// Bucket truncates a raw time-of-day string down to the nearest bucket
// boundary and drops the seconds, e.g. "12:40:00" -> "12:30" at width 15.
// The minute component of the result is always a multiple of widthMinutes.
// The function is pure: same input always yields the same output.
func Bucket(rawTime string, widthMinutes int) (string, error) {
	if widthMinutes <= 0 || widthMinutes > 60 {
		return "", fmt.Errorf("bucket width must be in 1..60, got %d", widthMinutes)
	}

	parts := strings.Split(rawTime, ":")
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, rawTime)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, rawTime)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, rawTime)
	}

	bucketed := (minute / widthMinutes) * widthMinutes
	return fmt.Sprintf("%02d:%02d", hour, bucketed), nil
}

// Key computes the index key for a raw slot at the given bucket width.
func (s RawSlot) Key(widthMinutes int) (SlotKey, error) {
	bucket, err := Bucket(s.Time, widthMinutes)
	if err != nil {
		return SlotKey{}, err
	}
	return SlotKey{
		FacilityID: s.FacilityID,
		Date:       s.Date,
		TimeBucket: bucket,
	}, nil
}
