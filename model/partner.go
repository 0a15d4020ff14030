package model

import "time"

// Partner status values. Only approved partners' links are honored by the
// redirect path; pending and suspended partners keep their records but their
// slugs resolve as not found.
const (
	PartnerPending   = "pending"
	PartnerApproved  = "approved"
	PartnerSuspended = "suspended"
)

// AffiliatePartner is an affiliate account. UserID ties the partner to the
// identity service so self-referrals can be detected.
type AffiliatePartner struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userID"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
