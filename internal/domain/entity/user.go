package entity

// User is an identity from the corporate directory
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	ApproverID *int64 `json:"approver_id,omitempty"`
	LarkOpenID string `json:"lark_open_id,omitempty"`
}

// IsTravelAdmin reports whether the user holds the travel-admin role
func (u *User) IsTravelAdmin() bool {
	return u.Role == RoleTravelAdmin
}

// IsAdmin reports whether the user may perform travel-desk operations
func (u *User) IsAdmin() bool {
	return u.Role == RoleTravelAdmin || u.Role == RoleSuperAdmin
}
