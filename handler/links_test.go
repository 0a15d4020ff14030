package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"affiliate-redirector/model"
)

func (env *testEnv) postJSON(t *testing.T, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// registerApprovedPartner walks the real flow: register, then approve via
// the admin endpoint.
func (env *testEnv) registerApprovedPartner(t *testing.T, userID string) (string, model.AffiliatePartner) {
	t.Helper()

	token, err := env.jwt.GenerateToken(userID, "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	w := env.postJSON(t, "/api/partners", token, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Register partner: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var partner model.AffiliatePartner
	if err := json.Unmarshal(w.Body.Bytes(), &partner); err != nil {
		t.Fatalf("Bad partner response: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/partners/"+partner.ID+"/approve", nil)
	req.Header.Set("X-Admin-Key", "admin-test-key")
	aw := httptest.NewRecorder()
	env.router.ServeHTTP(aw, req)
	if aw.Code != http.StatusOK {
		t.Fatalf("Approve partner: expected 200, got %d (%s)", aw.Code, aw.Body.String())
	}

	partner.Status = model.PartnerApproved
	return token, partner
}

func TestRegisterPartner_Idempotent(t *testing.T) {
	env := setupTestEnv(t)

	token, err := env.jwt.GenerateToken("user-1", "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	w := env.postJSON(t, "/api/partners", token, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	var first model.AffiliatePartner
	json.Unmarshal(w.Body.Bytes(), &first)
	if first.Status != model.PartnerPending {
		t.Errorf("New partner status = %s, want pending", first.Status)
	}

	// Second registration returns the existing account.
	w = env.postJSON(t, "/api/partners", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on repeat registration, got %d", w.Code)
	}
	var second model.AffiliatePartner
	json.Unmarshal(w.Body.Bytes(), &second)
	if second.ID != first.ID {
		t.Errorf("Repeat registration minted a new partner: %s vs %s", second.ID, first.ID)
	}
}

func TestRegisterPartner_RequiresAuth(t *testing.T) {
	env := setupTestEnv(t)

	w := env.postJSON(t, "/api/partners", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestAdminEndpoints_RequireKey(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/partners/p1/approve", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/partners/p1/approve", nil)
	req.Header.Set("X-Admin-Key", "wrong-key")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 with bad key, got %d", w.Code)
	}
}

func TestSuspendPartner_StopsRedirects(t *testing.T) {
	env := setupTestEnv(t)
	token, partner := env.registerApprovedPartner(t, "user-1")

	w := env.postJSON(t, "/api/links", token, CreateLinkRequest{
		DestinationURL: "https://example.com/product",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Create link: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var created CreateLinkResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	if rw := env.get("/l/"+created.Slug, map[string]string{"User-Agent": "UA"}); rw.Code != http.StatusFound {
		t.Fatalf("Expected 302 before suspension, got %d", rw.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/partners/"+partner.ID+"/suspend", nil)
	req.Header.Set("X-Admin-Key", "admin-test-key")
	sw := httptest.NewRecorder()
	env.router.ServeHTTP(sw, req)
	if sw.Code != http.StatusOK {
		t.Fatalf("Suspend: expected 200, got %d", sw.Code)
	}

	if rw := env.get("/l/"+created.Slug, map[string]string{"User-Agent": "UA"}); rw.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after suspension, got %d", rw.Code)
	}
}

func TestCreateLink_FullFlow(t *testing.T) {
	env := setupTestEnv(t)
	token, partner := env.registerApprovedPartner(t, "user-1")

	w := env.postJSON(t, "/api/links", token, CreateLinkRequest{
		DestinationURL: "https://example.com/product?ref=x",
		Title:          "Great Product",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	var created CreateLinkResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if created.AffiliateID != partner.ID {
		t.Errorf("Link credited to %s, want %s", created.AffiliateID, partner.ID)
	}
	if len(created.Slug) != slugLength {
		t.Errorf("Generated slug %q has unexpected length", created.Slug)
	}

	// The stored record carries a verifying signature.
	link, err := env.store.LinkBySlug(context.Background(), created.Slug)
	if err != nil {
		t.Fatalf("LinkBySlug() error = %v", err)
	}
	if !env.signer.VerifySlug(link.Slug, link.Signature) {
		t.Error("Stored link signature does not verify")
	}

	// And the link immediately redirects.
	rw := env.get("/l/"+created.Slug, map[string]string{"User-Agent": "UA"})
	if rw.Code != http.StatusFound {
		t.Errorf("Expected 302 from fresh link, got %d", rw.Code)
	}
}

func TestCreateLink_CustomSlug(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := env.registerApprovedPartner(t, "user-1")

	w := env.postJSON(t, "/api/links", token, CreateLinkRequest{
		DestinationURL: "https://example.com/product",
		CustomSlug:     "Spring-Sale",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var created CreateLinkResponse
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.Slug != "spring-sale" {
		t.Errorf("Custom slugs are stored lowercase, got %q", created.Slug)
	}

	// Conflicting slug (case-insensitive) is rejected.
	w = env.postJSON(t, "/api/links", token, CreateLinkRequest{
		DestinationURL: "https://example.com/other",
		CustomSlug:     "spring-sale",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for taken slug, got %d", w.Code)
	}
}

func TestCreateLink_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := env.registerApprovedPartner(t, "user-1")

	tests := []struct {
		name string
		body CreateLinkRequest
		want int
	}{
		{"Empty destination", CreateLinkRequest{}, http.StatusBadRequest},
		{"Bad scheme", CreateLinkRequest{DestinationURL: "ftp://example.com"}, http.StatusBadRequest},
		{"Localhost destination", CreateLinkRequest{DestinationURL: "http://localhost/x"}, http.StatusBadRequest},
		{"Private IP destination", CreateLinkRequest{DestinationURL: "http://192.168.1.1/x"}, http.StatusBadRequest},
		{"Reserved slug", CreateLinkRequest{DestinationURL: "https://example.com", CustomSlug: "admin"}, http.StatusBadRequest},
		{"Numeric slug", CreateLinkRequest{DestinationURL: "https://example.com", CustomSlug: "12345"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postJSON(t, "/api/links", token, tt.body)
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d (%s)", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateLink_PendingPartnerForbidden(t *testing.T) {
	env := setupTestEnv(t)

	token, err := env.jwt.GenerateToken("user-1", "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if w := env.postJSON(t, "/api/partners", token, nil); w.Code != http.StatusCreated {
		t.Fatalf("Register partner: got %d", w.Code)
	}

	// Still pending: no links yet.
	w := env.postJSON(t, "/api/links", token, CreateLinkRequest{
		DestinationURL: "https://example.com/product",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for pending partner, got %d", w.Code)
	}
}

func TestCreateLink_NoPartnerAccount(t *testing.T) {
	env := setupTestEnv(t)

	token, err := env.jwt.GenerateToken("user-1", "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	w := env.postJSON(t, "/api/links", token, CreateLinkRequest{
		DestinationURL: "https://example.com/product",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without a partner account, got %d", w.Code)
	}
}

func TestLinkStats_OwnerOnly(t *testing.T) {
	env := setupTestEnv(t)
	ownerToken, _ := env.registerApprovedPartner(t, "user-owner")

	w := env.postJSON(t, "/api/links", ownerToken, CreateLinkRequest{
		DestinationURL: "https://example.com/product",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Create link: got %d", w.Code)
	}
	var created CreateLinkResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	// Generate a couple of clicks from distinct visitors.
	env.get("/l/"+created.Slug, map[string]string{"User-Agent": "UA-1", "X-Forwarded-For": "203.0.113.1"})
	env.get("/l/"+created.Slug, map[string]string{"User-Agent": "UA-2", "X-Forwarded-For": "203.0.113.2"})

	link, err := env.store.LinkBySlug(context.Background(), created.Slug)
	if err != nil {
		t.Fatalf("LinkBySlug() error = %v", err)
	}
	env.waitForEvents(t, link.ID, 2)
	env.waitForClickCount(t, link.ID, 2)

	req := httptest.NewRequest(http.MethodGet, "/api/links/"+created.Slug+"/stats", nil)
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	sw := httptest.NewRecorder()
	env.router.ServeHTTP(sw, req)
	if sw.Code != http.StatusOK {
		t.Fatalf("Stats: expected 200, got %d (%s)", sw.Code, sw.Body.String())
	}

	var stats model.LinkStats
	if err := json.Unmarshal(sw.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Bad stats response: %v", err)
	}
	if stats.Clicks != 2 {
		t.Errorf("Expected 2 clicks, got %d", stats.Clicks)
	}
	if len(stats.RecentClicks) != 2 {
		t.Errorf("Expected 2 recent clicks, got %d", len(stats.RecentClicks))
	}

	// Another approved partner sees the link as not found.
	otherToken, _ := env.registerApprovedPartner(t, "user-other")
	req = httptest.NewRequest(http.MethodGet, "/api/links/"+created.Slug+"/stats", nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	ow := httptest.NewRecorder()
	env.router.ServeHTTP(ow, req)
	if ow.Code != http.StatusNotFound {
		t.Errorf("Foreign link stats: expected 404, got %d", ow.Code)
	}
}
