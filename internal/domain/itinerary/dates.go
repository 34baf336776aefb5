package itinerary

import (
	"strings"
	"time"

	"github.com/garyjia/travel-desk/internal/domain/entity"
)

var datePriority = map[string][]string{
	entity.SegmentTypeFlight: {"returnDate", "departureDate"},
	entity.SegmentTypeTrain:  {"returnDate", "departureDate"},
	entity.SegmentTypeHotel:  {"checkoutDate", "checkinDate"},
	entity.SegmentTypeCar:    {"dropoffDate", "pickupDate"},
}

var fallbackPriority = []string{
	"returnDate", "departureDate",
	"checkoutDate", "checkinDate",
	"dropoffDate", "pickupDate",
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// SegmentDate returns the journey date implied by one segment: the first
// non-empty value in the segment type's priority list. ok is false when that
// value is missing or cannot be parsed.
func SegmentDate(seg *entity.Segment) (time.Time, bool) {
	keys, known := datePriority[seg.Type]
	if !known {
		keys = fallbackPriority
	}

	for _, k := range keys {
		raw, _ := seg.Details[k].(string)
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		return parseDate(raw)
	}
	return time.Time{}, false
}

// LatestDate returns the maximum SegmentDate across segments.
func LatestDate(segments []*entity.Segment) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, seg := range segments {
		d, ok := SegmentDate(seg)
		if !ok {
			continue
		}
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}
	return latest, found
}

// JourneyEnded reports whether latest falls on a calendar day strictly
// before the calendar day of now.
func JourneyEnded(latest, now time.Time) bool {
	ly, lm, ld := latest.Date()
	ny, nm, nd := now.Date()
	l := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return l.Before(n)
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
