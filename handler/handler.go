package handler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"affiliate-redirector/abuse"
	"affiliate-redirector/cache"
	"affiliate-redirector/clicks"
	"affiliate-redirector/config"
	"affiliate-redirector/signing"
	"affiliate-redirector/store"

	"github.com/rs/zerolog/log"
)

const (
	slugLength = 8
	maxRetries = 5
	charset    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrMaxRetriesExceeded = errors.New("failed to generate unique slug after maximum retries")

// Handler serves the affiliate link surface: the public redirect endpoint
// and the authenticated partner/link API. All collaborators are injected;
// no state survives between requests outside the store and the link cache.
type Handler struct {
	store    *store.Store
	cache    *cache.Cache
	signer   *signing.Signer
	guard    *abuse.Guard
	recorder *clicks.Recorder
	config   config.Config
	baseURL  string
}

// New creates the handler with its injected dependencies.
func New(s *store.Store, c *cache.Cache, signer *signing.Signer, guard *abuse.Guard, recorder *clicks.Recorder, cfg config.Config) *Handler {
	// Use configured base_url if provided, otherwise construct from scheme, IP, and port
	baseURL := cfg.WebServer.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s://%s:%s", cfg.WebServer.Scheme, cfg.WebServer.IP, cfg.WebServer.Port)
	}
	return &Handler{
		store:    s,
		cache:    c,
		signer:   signer,
		guard:    guard,
		recorder: recorder,
		config:   cfg,
		baseURL:  baseURL,
	}
}

// generateRandomString generates a cryptographically secure random string
func generateRandomString(length int) (string, error) {
	result := make([]byte, length)
	for i := range result {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}

// generateUniqueSlug generates a random slug with collision detection.
func (h *Handler) generateUniqueSlug(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		slug, err := generateRandomString(slugLength)
		if err != nil {
			return "", err
		}

		exists, err := h.store.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}

		log.Warn().
			Str("slug", slug).
			Int("attempt", attempt+1).
			Msg("Slug collision detected, retrying")
	}

	return "", ErrMaxRetriesExceeded
}
