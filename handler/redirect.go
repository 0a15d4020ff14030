package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"affiliate-redirector/abuse"
	"affiliate-redirector/middleware"
	"affiliate-redirector/model"
	"affiliate-redirector/store"
	"affiliate-redirector/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Redirect handles GET/HEAD /l/{slug}: resolve the link, verify its
// signature, decide whether the click counts, then send the visitor on with
// the attribution cookie set. Click persistence happens off this path; only
// resolution and verification can fail the request.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	slug := mux.Vars(r)["slug"]

	link, ok := h.cache.GetLink(slug)
	if !ok {
		var err error
		link, err = h.store.LinkBySlug(ctx, slug)
		if err == store.ErrNotFound {
			log.Warn().Str("slug", slug).Msg("Link not found")
			SendPlainError(w, http.StatusNotFound, "link not found")
			return
		} else if err != nil {
			log.Error().Err(err).Str("slug", slug).Msg("Failed to resolve slug")
			SendPlainError(w, http.StatusInternalServerError, "internal error")
			return
		}
		h.cache.SetLink(slug, link)
	}

	// The partner status is never cached: a suspension must take effect on
	// the next click, not when the link entry expires.
	partner, err := h.store.PartnerByID(ctx, link.AffiliateID)
	if err == store.ErrNotFound {
		log.Warn().Str("slug", slug).Str("affiliate_id", link.AffiliateID).Msg("Link has no partner record")
		SendPlainError(w, http.StatusNotFound, "link not found")
		return
	} else if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to load partner")
		SendPlainError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if partner.Status != model.PartnerApproved {
		log.Warn().
			Str("slug", slug).
			Str("affiliate_id", partner.ID).
			Str("status", partner.Status).
			Msg("Link owned by non-approved partner")
		SendPlainError(w, http.StatusNotFound, "link not found")
		return
	}

	if !h.signer.VerifySlug(link.Slug, link.Signature) {
		log.Warn().Str("slug", slug).Msg("Link signature does not verify")
		SendPlainError(w, http.StatusBadRequest, "invalid link")
		return
	}

	clientIP := utils.ClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	suppress, reason := h.guard.Evaluate(ctx, abuse.Click{
		IP:          clientIP,
		UserAgent:   userAgent,
		LinkID:      link.ID,
		OwnerUserID: partner.UserID,
		UserID:      middleware.GetUserID(r),
	})
	if suppress {
		log.Info().
			Str("slug", slug).
			Str("ip", clientIP).
			Str("reason", reason).
			Msg("Click suppressed")
	} else {
		h.recorder.Enqueue(model.ClickEvent{
			ID:          uuid.New().String(),
			LinkID:      link.ID,
			AffiliateID: link.AffiliateID,
			IP:          clientIP,
			UserAgent:   userAgent,
			Referer:     r.Header.Get("Referer"),
			Country:     utils.CountryCode(r),
			OccurredAt:  time.Now(),
		})
	}

	h.setAttributionCookie(w, link.AffiliateID)

	destination := h.destinationWithUTM(link)

	// Redirects must never be served from an intermediary: each visit
	// re-mints the cookie and re-evaluates the click.
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")

	log.Info().
		Str("slug", slug).
		Str("destination", destination).
		Str("affiliate_id", link.AffiliateID).
		Bool("suppressed", suppress).
		Msg("Redirecting")

	http.Redirect(w, r, destination, http.StatusFound)
}

// setAttributionCookie attaches the signed attribution token crediting the
// affiliate for a future conversion.
func (h *Handler) setAttributionCookie(w http.ResponseWriter, affiliateID string) {
	cfg := h.config.Attribution
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    h.signer.MintAttributionCookie(affiliateID, time.Now()),
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   cfg.CookieMaxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// destinationWithUTM merges the default UTM parameters into the link's
// destination query string. Parameters already present on the destination
// are never overwritten; the affiliate may have set up their own campaign
// tagging.
func (h *Handler) destinationWithUTM(link model.AffiliateLink) string {
	parsed, err := url.Parse(link.Destination)
	if err != nil {
		// Stored destinations are validated at creation; an unparseable one
		// is better redirected as-is than turned into an error page.
		log.Error().Err(err).Str("destination", link.Destination).Msg("Stored destination failed to parse")
		return link.Destination
	}

	query := parsed.Query()
	if !query.Has("utm_source") {
		query.Set("utm_source", h.config.Attribution.UTMSource)
	}
	if !query.Has("utm_medium") {
		query.Set("utm_medium", h.config.Attribution.UTMMedium)
	}
	if !query.Has("utm_campaign") {
		query.Set("utm_campaign", link.Slug)
	}
	if link.Title != "" && !query.Has("utm_content") {
		query.Set("utm_content", link.Title)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}
