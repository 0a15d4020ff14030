package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const cookieDelimiter = "|"

var (
	ErrEmptySecret    = errors.New("signing secret cannot be empty")
	ErrBadSignature   = errors.New("signature does not verify")
	ErrMalformedToken = errors.New("malformed attribution token")
	ErrTokenExpired   = errors.New("attribution token expired")
)

// Signer produces and verifies the two HMAC-SHA256 artifacts of the service:
// the per-link slug signature and the attribution cookie payload. Both use
// the same server-held secret.
type Signer struct {
	secret []byte
}

// New creates a Signer. The secret is required; running without one would
// silently void every signature the service hands out.
func New(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) mac(data string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// SignSlug returns the hex-encoded HMAC stored alongside a new link record.
func (s *Signer) SignSlug(slug string) string {
	return hex.EncodeToString(s.mac(slug))
}

// VerifySlug reports whether the stored signature was produced by this
// server for the given slug. Malformed hex verifies false rather than
// erroring; a corrupted record is indistinguishable from a forged one.
func (s *Signer) VerifySlug(slug, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, s.mac(slug))
}

// MintAttributionCookie builds the cookie value crediting affiliateID:
// "<affiliateID>|<unixMillis>|<hexMAC>" where the MAC covers the first two
// segments. The value is opaque to the browser and tamper-evident to us.
func (s *Signer) MintAttributionCookie(affiliateID string, now time.Time) string {
	data := affiliateID + cookieDelimiter + strconv.FormatInt(now.UnixMilli(), 10)
	return data + cookieDelimiter + hex.EncodeToString(s.mac(data))
}

// VerifyAttributionCookie is the symmetric read path used when a conversion
// is credited. It returns the affiliate id and mint time for a valid token,
// rejecting tampered values and tokens older than maxAge (0 disables the
// age check).
func (s *Signer) VerifyAttributionCookie(token string, maxAge time.Duration, now time.Time) (string, time.Time, error) {
	parts := strings.Split(token, cookieDelimiter)
	if len(parts) != 3 || parts[0] == "" {
		return "", time.Time{}, ErrMalformedToken
	}

	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: bad timestamp", ErrMalformedToken)
	}

	provided, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: bad mac encoding", ErrMalformedToken)
	}

	data := parts[0] + cookieDelimiter + parts[1]
	if !hmac.Equal(provided, s.mac(data)) {
		return "", time.Time{}, ErrBadSignature
	}

	mintedAt := time.UnixMilli(millis)
	if maxAge > 0 && now.Sub(mintedAt) > maxAge {
		return "", time.Time{}, ErrTokenExpired
	}

	return parts[0], mintedAt, nil
}
