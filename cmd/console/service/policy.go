package service

import (
	"github.com/datacove/console/cmd/console/models"
)

// ApprovalPolicy decides whether an assigned reviewer's decision is
// enough to resolve a change request. Swapping the policy changes how
// many sign-offs a merge needs without touching the state machine.
type ApprovalPolicy interface {
	// CanDecide reports whether the given user may approve or reject
	// the change request.
	CanDecide(cr *models.ChangeRequest, userID string) bool

	// Resolved reports whether the change request has collected enough
	// approvals to merge after userID's approval lands.
	Resolved(cr *models.ChangeRequest, userID string) bool
}

// SingleApprovalPolicy merges on the first approval from any assigned
// reviewer.
type SingleApprovalPolicy struct{}

func (SingleApprovalPolicy) CanDecide(cr *models.ChangeRequest, userID string) bool {
	return cr.IsAssigned(userID)
}

func (SingleApprovalPolicy) Resolved(cr *models.ChangeRequest, userID string) bool {
	return cr.IsAssigned(userID)
}
