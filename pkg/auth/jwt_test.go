package auth

import (
	"testing"
)

func TestGenerateJWT(t *testing.T) {
	userID := 1
	email := "test@example.com"
	tier := "standard"
	secret := "test-secret-key-minimum-32-characters-long"
	expirationHours := 24

	token, err := GenerateJWT(userID, email, tier, secret, expirationHours)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	if token == "" {
		t.Error("Token should not be empty")
	}

	if len(token) < 10 {
		t.Error("Token seems too short")
	}
}

func TestValidateJWT(t *testing.T) {
	userID := 123
	email := "test@example.com"
	tier := "elevated"
	secret := "test-secret-key-minimum-32-characters-long"

	token, err := GenerateJWT(userID, email, tier, secret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate JWT: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected UserID %d, got %d", userID, claims.UserID)
	}

	if claims.Email != email {
		t.Errorf("Expected Email %s, got %s", email, claims.Email)
	}

	if claims.Tier != tier {
		t.Errorf("Expected Tier %s, got %s", tier, claims.Tier)
	}
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT(1, "test@example.com", "standard", "correct-secret-key-32-characters-xx", 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	if _, err := ValidateJWT(token, "wrong-secret"); err == nil {
		t.Error("Expected validation to fail with wrong secret")
	}
}

func TestValidateJWT_Expired(t *testing.T) {
	secret := "test-secret-key-minimum-32-characters-long"

	// Negative expiration produces an already-expired token
	token, err := GenerateJWT(1, "test@example.com", "standard", secret, -1)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	if _, err := ValidateJWT(token, secret); err == nil {
		t.Error("Expected validation to fail for expired token")
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	if _, err := ValidateJWT("not.a.token", "secret"); err == nil {
		t.Error("Expected validation to fail for malformed token")
	}
}
