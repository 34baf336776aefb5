package port

import (
	"context"
	"time"
)

// TripSnapshot is the trip summary rendered into notifications
type TripSnapshot struct {
	ID                 int64     `json:"id"`
	ReferenceCode      string    `json:"reference_code"`
	Name               string    `json:"name"`
	Status             string    `json:"status"`
	RequesterName      string    `json:"requester_name"`
	DestinationCountry string    `json:"destination_country"`
	TravelType         string    `json:"travel_type"`
	OptionSelected     string    `json:"option_selected,omitempty"`
	TotalCost          *int64    `json:"total_cost,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Recipient identifies a notification target across channels
type Recipient struct {
	Name       string
	Email      string
	LarkOpenID string
}

// Attachment is a file attached to a notification
type Attachment struct {
	FileName    string
	ContentType string
	Path        string
}

// Notification is a single fire-and-forget message about a trip
type Notification struct {
	Recipient   Recipient
	CC          []Recipient
	Subject     string
	Trip        TripSnapshot
	Message     string
	Attachments []Attachment
	ActionLink  string
}

// Notifier delivers notifications over one channel
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Name() string
}

// FinalizeRequest asks the booking partner to confirm a selected option
type FinalizeRequest struct {
	TripID           int64                  `json:"tripId"`
	ReferenceCode    string                 `json:"referenceCode"`
	PartnerBookingID string                 `json:"partnerBookingId,omitempty"`
	OptionText       string                 `json:"optionText"`
	TotalCost        *int64                 `json:"totalCost,omitempty"`
	Payload          map[string]interface{} `json:"payload,omitempty"`
}

// BookingPartner is the external system that finalizes partner bookings
type BookingPartner interface {
	Finalize(ctx context.Context, req FinalizeRequest) error
}
