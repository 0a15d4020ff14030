package model

import "time"

// ClickEvent is an immutable record of a single counted click. Rows are only
// ever appended; the anti-fraud review tooling reads them back as-is.
type ClickEvent struct {
	ID          string    `json:"id"`
	LinkID      string    `json:"linkID"`
	AffiliateID string    `json:"affiliateID"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"userAgent"`
	Referer     string    `json:"referer"`
	Country     string    `json:"country"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// LinkStats is the dashboard view of a single link.
type LinkStats struct {
	Slug         string       `json:"slug"`
	Destination  string       `json:"destination"`
	Clicks       int64        `json:"clicks"`
	RecentClicks []ClickEvent `json:"recentClicks"`
}
