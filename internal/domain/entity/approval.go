package entity

import "time"

// Decision is the outcome written when an approval record is closed
type Decision string

const (
	DecisionAccept    Decision = "accept"
	DecisionReject    Decision = "reject"
	DecisionSendBack  Decision = "send_back"
	DecisionWithdrawn Decision = "withdrawn"
)

// IsValid returns true for decisions an approver may submit
func (d Decision) IsValid() bool {
	switch d {
	case DecisionAccept, DecisionReject, DecisionSendBack:
		return true
	}
	return false
}

// Approval is one routing hop in a trip's approval chain.
// Decision is nil while the record is open.
type Approval struct {
	ID         int64      `json:"id"`
	TripID     int64      `json:"trip_id"`
	ApproverID int64      `json:"approver_id"`
	Role       string     `json:"role"`
	Decision   *Decision  `json:"decision,omitempty"`
	Comments   string     `json:"comments,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsOpen reports whether the approval still awaits a decision
func (a *Approval) IsOpen() bool {
	return a.Decision == nil
}
