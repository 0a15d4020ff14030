package abuse

import (
	"context"
	"time"

	"affiliate-redirector/config"
	"affiliate-redirector/store"

	"github.com/rs/zerolog/log"
)

// Suppression reasons, recorded in logs for anti-fraud review.
const (
	ReasonNone         = ""
	ReasonSelfReferral = "self_referral"
	ReasonRateLimited  = "ip_rate_limited"
	ReasonDuplicate    = "duplicate_click"
)

// Click describes one click attempt as seen by the guard.
type Click struct {
	IP          string
	UserAgent   string
	LinkID      string
	OwnerUserID string // user owning the link's affiliate account
	UserID      string // authenticated caller, empty for anonymous visits
}

// Guard decides whether a click attempt is counted for attribution. It never
// blocks the redirect itself; a suppressed click still sends the visitor on
// their way, it just leaves no ClickEvent row behind.
type Guard struct {
	store           *store.Store
	ipWindow        time.Duration
	ipLimit         int64
	duplicateWindow time.Duration
}

func NewGuard(s *store.Store, cfg config.AbuseConfig) *Guard {
	return &Guard{
		store:           s,
		ipWindow:        time.Duration(cfg.IPWindowMinutes) * time.Minute,
		ipLimit:         int64(cfg.IPClickLimit),
		duplicateWindow: time.Duration(cfg.DuplicateWindowS) * time.Second,
	}
}

// Evaluate returns (suppress, reason). Checks run cheapest-certain first:
// self-referral needs no store round trip. When the store itself fails the
// click is counted; analytics gating must not depend on store health.
func (g *Guard) Evaluate(ctx context.Context, click Click) (bool, string) {
	if click.UserID != "" && click.UserID == click.OwnerUserID {
		return true, ReasonSelfReferral
	}

	recent, err := g.store.ClicksFromIP(ctx, click.IP, g.ipWindow)
	if err != nil {
		log.Error().Err(err).Str("ip", click.IP).Msg("Rate window lookup failed, counting click")
		return false, ReasonNone
	}
	if recent >= g.ipLimit {
		return true, ReasonRateLimited
	}

	// MarkSeen both checks and stamps the fingerprint, so it runs last:
	// attempts suppressed above must not start a duplicate window.
	fresh, err := g.store.MarkSeen(ctx, click.IP, click.UserAgent, click.LinkID, g.duplicateWindow)
	if err != nil {
		log.Error().Err(err).Str("ip", click.IP).Msg("Duplicate check failed, counting click")
		return false, ReasonNone
	}
	if !fresh {
		return true, ReasonDuplicate
	}

	return false, ReasonNone
}
