package entity

import "time"

// Segment is one leg of a trip itinerary (flight, hotel, car or train)
type Segment struct {
	ID        int64                  `json:"id"`
	TripID    int64                  `json:"trip_id"`
	Type      string                 `json:"type"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}
