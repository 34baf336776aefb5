package entity

// Role constants for User
const (
	RoleRequester   = "requester"
	RoleTravelAdmin = "travel_admin"
	RoleSuperAdmin  = "super_admin"
)

// Approver role constants for Approval
const (
	ApproverRoleReportingManager = "reporting_manager"
	ApproverRoleTravelAdmin      = "travel_admin"
)

// Travel type constants for Trip
const (
	TravelTypeDomestic      = "domestic"
	TravelTypeInternational = "international"
)

// Segment type constants for Segment
const (
	SegmentTypeFlight = "flight"
	SegmentTypeHotel  = "hotel"
	SegmentTypeCar    = "car"
	SegmentTypeTrain  = "train"
)

// File kind constants for TripFile
const (
	FileKindReceipt      = "receipt"
	FileKindTravelOption = "travel_option"
	FileKindVisa         = "visa"
	FileKindOther        = "other"
)

// Booking payload flag keys
const (
	PayloadManagerApproved  = "managerApproved"
	PayloadAdminApproved    = "adminApproved"
	PayloadOptionsUploaded  = "optionsUploaded"
	PayloadPartnerBookingID = "partnerBookingId"
)

// IsEngineOwnedKey reports whether key is a payload flag only the engine may set
func IsEngineOwnedKey(key string) bool {
	switch key {
	case PayloadManagerApproved, PayloadAdminApproved, PayloadOptionsUploaded:
		return true
	}
	return false
}

// IsValidSegmentType reports whether t is a known itinerary segment type
func IsValidSegmentType(t string) bool {
	switch t {
	case SegmentTypeFlight, SegmentTypeHotel, SegmentTypeCar, SegmentTypeTrain:
		return true
	}
	return false
}

// IsValidFileKind reports whether k is a known trip file kind
func IsValidFileKind(k string) bool {
	switch k {
	case FileKindReceipt, FileKindTravelOption, FileKindVisa, FileKindOther:
		return true
	}
	return false
}
