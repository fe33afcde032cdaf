package dto

import "github.com/institutoberea/enrollment-api/internal/models"

// ApprovalResponse bundles the accepted request with the roster membership
// the approval ensured.
type ApprovalResponse struct {
	Request    *models.EnrollmentRequest `json:"request"`
	Membership *models.RosterMembership  `json:"membership"`
}
