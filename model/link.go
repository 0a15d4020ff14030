package model

import "time"

// AffiliateLink is the persisted record behind a short slug. The Signature
// field is a hex-encoded HMAC over the slug; a link is never honored until
// it verifies against the server secret.
type AffiliateLink struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Destination string    `json:"destination"`
	Title       string    `json:"title,omitempty"`
	AffiliateID string    `json:"affiliateID"`
	Signature   string    `json:"signature"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}
