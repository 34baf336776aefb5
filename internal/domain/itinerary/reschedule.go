// Package itinerary holds the rules that inspect itinerary segment details:
// which fields a booked trip may reschedule and which date ends the journey.
package itinerary

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
)

var (
	transitFields = fieldSet("departureDate", "departureTime", "returnDate", "returnTime")
	hotelFields   = fieldSet("checkinDate", "checkinTime", "checkoutDate", "checkoutTime")
	carFields     = fieldSet("pickupDate", "pickupTime", "dropoffDate", "dropoffTime")
)

// RescheduleFields lists, per segment type, the detail keys a booked segment
// may change.
var RescheduleFields = map[string]map[string]bool{
	entity.SegmentTypeFlight: transitFields,
	entity.SegmentTypeTrain:  transitFields,
	entity.SegmentTypeHotel:  hotelFields,
	entity.SegmentTypeCar:    carFields,
}

// anyTypeFields applies to segments whose type has no entry above
var anyTypeFields = fieldSet(
	"departureDate", "departureTime", "returnDate", "returnTime",
	"checkinDate", "checkinTime", "checkoutDate", "checkoutTime",
	"pickupDate", "pickupTime", "dropoffDate", "dropoffTime",
)

func fieldSet(keys ...string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

// Reschedulable reports whether key may change on a booked segment of segType
func Reschedulable(segType, key string) bool {
	fields, ok := RescheduleFields[segType]
	if !ok {
		fields = anyTypeFields
	}
	return fields[key]
}

// DisallowedFieldError reports the first non-date field a reschedule tried to change.
type DisallowedFieldError struct {
	SegmentID int64
	Field     string
}

func (e *DisallowedFieldError) Error() string {
	return fmt.Sprintf("field %q of segment %d cannot be changed when rescheduling", e.Field, e.SegmentID)
}

func (e *DisallowedFieldError) Unwrap() error {
	return domain.ErrValidation
}

// CheckChanges compares proposed against stored details of a segment of
// segType and returns a DisallowedFieldError for the first non-whitelisted key
// whose value differs. Keys are visited in sorted order so the reported field
// is deterministic.
func CheckChanges(segmentID int64, segType string, stored, proposed map[string]interface{}) error {
	keys := make([]string, 0, len(proposed))
	for k := range proposed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if Reschedulable(segType, k) {
			continue
		}
		old, ok := stored[k]
		if !ok || !reflect.DeepEqual(old, proposed[k]) {
			return &DisallowedFieldError{SegmentID: segmentID, Field: k}
		}
	}
	return nil
}

// MergeAllowed returns a copy of stored with only the keys of proposed that
// segType may reschedule applied.
func MergeAllowed(segType string, stored, proposed map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(stored))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range proposed {
		if Reschedulable(segType, k) {
			out[k] = v
		}
	}
	return out
}
