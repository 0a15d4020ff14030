package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"affiliate-redirector/middleware"
	"affiliate-redirector/model"
	"affiliate-redirector/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// RegisterPartner handles POST /api/partners. Registration is idempotent per
// user: a repeat call returns the existing account instead of minting a
// second one.
func (h *Handler) RegisterPartner(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	userID := middleware.GetUserID(r)
	if userID == "" {
		SendJSONError(w, http.StatusUnauthorized, errors.New("authentication required"), "")
		return
	}

	existing, err := h.store.PartnerByUserID(ctx, userID)
	if err == nil {
		SendJSONSuccess(w, http.StatusOK, existing)
		return
	} else if err != store.ErrNotFound {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to check existing partner")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to check existing partner")
		return
	}

	partner := model.AffiliatePartner{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    model.PartnerPending,
		CreatedAt: time.Now(),
	}
	if err := h.store.SavePartner(ctx, partner); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to save partner")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to register partner")
		return
	}

	log.Info().Str("partner_id", partner.ID).Str("user_id", userID).Msg("Partner registered")
	SendJSONSuccess(w, http.StatusCreated, partner)
}

// ApprovePartner handles POST /api/admin/partners/{partnerID}/approve.
func (h *Handler) ApprovePartner(w http.ResponseWriter, r *http.Request) {
	h.setPartnerStatus(w, r, model.PartnerApproved)
}

// SuspendPartner handles POST /api/admin/partners/{partnerID}/suspend. A
// suspended partner's links stop resolving on the next click.
func (h *Handler) SuspendPartner(w http.ResponseWriter, r *http.Request) {
	h.setPartnerStatus(w, r, model.PartnerSuspended)
}

func (h *Handler) setPartnerStatus(w http.ResponseWriter, r *http.Request, status string) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	partnerID := mux.Vars(r)["partnerID"]
	partner, err := h.store.PartnerByID(ctx, partnerID)
	if err == store.ErrNotFound {
		SendJSONError(w, http.StatusNotFound, errors.New("partner not found"), "")
		return
	} else if err != nil {
		log.Error().Err(err).Str("partner_id", partnerID).Msg("Failed to load partner")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to load partner")
		return
	}

	partner.Status = status
	if err := h.store.SavePartner(ctx, partner); err != nil {
		log.Error().Err(err).Str("partner_id", partnerID).Msg("Failed to update partner status")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to update partner")
		return
	}

	log.Info().Str("partner_id", partnerID).Str("status", status).Msg("Partner status updated")
	SendJSONSuccess(w, http.StatusOK, partner)
}
