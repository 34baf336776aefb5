package entity

import (
	"time"

	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

// Trip represents a travel request and its lifecycle status
type Trip struct {
	ID                  int64          `json:"id"`
	ReferenceCode       string         `json:"reference_code"`
	RequesterID         int64          `json:"requester_id"`
	Name                string         `json:"name"`
	TravelType          string         `json:"travel_type"`
	DestinationCountry  string         `json:"destination_country"`
	VisaRequired        bool           `json:"visa_required"`
	BusinessPurpose     string         `json:"business_purpose"`
	Status              workflow.State `json:"status"`
	OptionSelected      string         `json:"option_selected,omitempty"`
	TotalCost           *int64         `json:"total_cost,omitempty"`
	BookingPayload      Payload        `json:"booking_payload,omitempty"`
	CancellationReason  string         `json:"cancellation_reason,omitempty"`
	CancellationCost    *int64         `json:"cancellation_cost,omitempty"`
	IsVisaRequest       bool           `json:"is_visa_request"`
	ExpectedJourneyDate *time.Time     `json:"expected_journey_date,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	SubmittedAt         time.Time      `json:"submitted_at"`
	BookedAt            *time.Time     `json:"booked_at,omitempty"`
	ClosedAt            *time.Time     `json:"closed_at,omitempty"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// HasSelectedOption reports whether an option was chosen through the booking partner
func (t *Trip) HasSelectedOption() bool {
	return t.OptionSelected != ""
}

// Payload is the free-form booking payload stored alongside a trip
type Payload map[string]interface{}

// Flag returns the boolean value stored at key, false if absent or not a bool
func (p Payload) Flag(key string) bool {
	if p == nil {
		return false
	}
	b, ok := p[key].(bool)
	return ok && b
}

// Clone returns a shallow copy of the payload
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// With returns a copy of the payload with key set to value
func (p Payload) With(key string, value interface{}) Payload {
	out := p.Clone()
	out[key] = value
	return out
}

// MergeExternal returns a copy of the payload overlaid with a
// caller-supplied payload. Keys the engine sets itself as approvals and
// uploads happen are skipped.
func (p Payload) MergeExternal(other map[string]interface{}) Payload {
	out := p.Clone()
	for k, v := range other {
		if IsEngineOwnedKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Without returns a copy of the payload with key removed
func (p Payload) Without(key string) Payload {
	out := p.Clone()
	delete(out, key)
	return out
}
