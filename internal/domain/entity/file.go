package entity

import "time"

// TripFile is an uploaded document (receipt, travel option, visa) linked to a trip
type TripFile struct {
	ID          int64     `json:"id"`
	TripID      int64     `json:"trip_id"`
	Kind        string    `json:"kind"`
	Path        string    `json:"path"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	UploadedBy  int64     `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
