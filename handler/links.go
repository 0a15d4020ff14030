package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"affiliate-redirector/middleware"
	"affiliate-redirector/model"
	"affiliate-redirector/store"
	"affiliate-redirector/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const recentClickLimit = 20

// CreateLinkRequest is the body of POST /api/links.
type CreateLinkRequest struct {
	DestinationURL string `json:"destinationURL"`
	Title          string `json:"title"`
	CustomSlug     string `json:"customSlug"`
}

// CreateLinkResponse is returned for a newly created link.
type CreateLinkResponse struct {
	Slug        string `json:"slug"`
	ShortURL    string `json:"shortURL"`
	Destination string `json:"destination"`
	Title       string `json:"title,omitempty"`
	AffiliateID string `json:"affiliateID"`
}

// CreateLink handles POST /api/links. The caller must be authenticated and
// own an approved partner account; the slug is signed at creation so the
// redirect path can detect forged or corrupted records later.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	partner, ok := h.approvedPartner(ctx, w, r)
	if !ok {
		return
	}

	var input CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Error().Err(err).Msg("Failed to decode request body")
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := utils.ValidateDestination(input.DestinationURL); err != nil {
		log.Warn().Err(err).Str("url", input.DestinationURL).Msg("Invalid destination URL")
		SendJSONError(w, http.StatusBadRequest, err, "")
		return
	}

	var slug string
	if input.CustomSlug != "" {
		if !h.config.Features.CustomSlugsEnabled {
			SendJSONError(w, http.StatusBadRequest, errors.New("custom slugs are disabled"), "Custom slugs feature is not enabled")
			return
		}

		if err := utils.ValidateSlug(input.CustomSlug, h.config.Features.MinSlugLength, h.config.Features.MaxSlugLength); err != nil {
			log.Warn().Err(err).Str("slug", input.CustomSlug).Msg("Invalid custom slug")
			SendJSONError(w, http.StatusBadRequest, err, "")
			return
		}

		slugLower := strings.ToLower(input.CustomSlug)
		exists, err := h.store.SlugExists(ctx, slugLower)
		if err != nil {
			log.Error().Err(err).Msg("Failed to check slug availability")
			SendJSONError(w, http.StatusInternalServerError, err, "Failed to check slug availability")
			return
		}
		if exists {
			SendJSONError(w, http.StatusConflict, errors.New("custom slug already taken"),
				fmt.Sprintf("The slug '%s' is already in use. Try a different slug or leave blank for auto-generation.", input.CustomSlug))
			return
		}
		slug = slugLower
	} else {
		var err error
		slug, err = h.generateUniqueSlug(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate unique slug")
			SendJSONError(w, http.StatusInternalServerError, err, "Failed to generate slug")
			return
		}
	}

	link := model.AffiliateLink{
		ID:          uuid.New().String(),
		Slug:        slug,
		Destination: input.DestinationURL,
		Title:       input.Title,
		AffiliateID: partner.ID,
		Signature:   h.signer.SignSlug(slug),
		CreatedAt:   time.Now(),
	}

	if err := h.store.SaveLink(ctx, link); err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to store link")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to store link")
		return
	}

	log.Info().
		Str("slug", slug).
		Str("destination", link.Destination).
		Str("affiliate_id", partner.ID).
		Msg("Affiliate link created")

	SendJSONSuccess(w, http.StatusCreated, CreateLinkResponse{
		Slug:        slug,
		ShortURL:    fmt.Sprintf("%s/l/%s", h.baseURL, slug),
		Destination: link.Destination,
		Title:       link.Title,
		AffiliateID: partner.ID,
	})
}

// LinkStats handles GET /api/links/{slug}/stats. Only the owning partner can
// read a link's numbers.
func (h *Handler) LinkStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	partner, ok := h.partnerForUser(ctx, w, r)
	if !ok {
		return
	}

	slug := mux.Vars(r)["slug"]
	link, err := h.store.LinkBySlug(ctx, slug)
	if err == store.ErrNotFound {
		SendJSONError(w, http.StatusNotFound, errors.New("link not found"), "")
		return
	} else if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to load link")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load link")
		return
	}

	// Foreign links read as not found; the stats surface must not confirm
	// which slugs exist.
	if link.AffiliateID != partner.ID {
		SendJSONError(w, http.StatusNotFound, errors.New("link not found"), "")
		return
	}

	recent, err := h.store.RecentClicks(ctx, link.ID, recentClickLimit)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to load recent clicks")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load click history")
		return
	}

	SendJSONSuccess(w, http.StatusOK, model.LinkStats{
		Slug:         link.Slug,
		Destination:  link.Destination,
		Clicks:       link.Clicks,
		RecentClicks: recent,
	})
}

// partnerForUser resolves the authenticated caller's partner account,
// writing the error response itself when there is none.
func (h *Handler) partnerForUser(ctx context.Context, w http.ResponseWriter, r *http.Request) (model.AffiliatePartner, bool) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		SendJSONError(w, http.StatusUnauthorized, errors.New("authentication required"), "")
		return model.AffiliatePartner{}, false
	}

	partner, err := h.store.PartnerByUserID(ctx, userID)
	if err == store.ErrNotFound {
		SendJSONError(w, http.StatusForbidden, errors.New("no affiliate account"), "Register as a partner first")
		return model.AffiliatePartner{}, false
	} else if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load partner")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load partner account")
		return model.AffiliatePartner{}, false
	}

	return partner, true
}

// approvedPartner is partnerForUser plus the approval gate used by the
// mutating endpoints.
func (h *Handler) approvedPartner(ctx context.Context, w http.ResponseWriter, r *http.Request) (model.AffiliatePartner, bool) {
	partner, ok := h.partnerForUser(ctx, w, r)
	if !ok {
		return partner, false
	}
	if partner.Status != model.PartnerApproved {
		SendJSONError(w, http.StatusForbidden, errors.New("partner not approved"),
			fmt.Sprintf("Partner account status is '%s'; links can only be created once approved", partner.Status))
		return partner, false
	}
	return partner, true
}
