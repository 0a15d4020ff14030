package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	m := NewJWTManager("test-secret")

	token, err := m.GenerateToken("user-9", "partner@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-9" {
		t.Errorf("Expected user-9, got %s", claims.UserID)
	}
	if claims.Email != "partner@example.com" {
		t.Errorf("Expected email claim, got %s", claims.Email)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-a")
	verifier := NewJWTManager("secret-b")

	token, err := issuer.GenerateToken("user-9", "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("Token signed with a different secret accepted")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	m := NewJWTManager("test-secret")

	token, err := m.GenerateToken("user-9", "", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := m.ValidateToken(token); err == nil {
		t.Error("Expired token accepted")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	m := NewJWTManager("test-secret")

	if _, err := m.ValidateToken("not.a.token"); err == nil {
		t.Error("Garbage token accepted")
	}
}

func TestNoSecret(t *testing.T) {
	m := NewJWTManager("")

	if _, err := m.GenerateToken("user-9", "", time.Hour); err != ErrNoSecret {
		t.Errorf("Expected ErrNoSecret, got %v", err)
	}
	if _, err := m.ValidateToken("whatever"); err != ErrNoSecret {
		t.Errorf("Expected ErrNoSecret, got %v", err)
	}
}
