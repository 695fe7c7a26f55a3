package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("driver-1", RoleDriver, "pickup", "test-key", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	claims, err := Parse(pair.AccessToken, "test-key", "pickup")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "driver-1" || claims.Role != RoleDriver {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("driver-1", RoleDriver, "pickup", "test-key", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other-key", "pickup"); err == nil {
		t.Fatal("expected error for wrong signing key")
	}
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	pair, err := Issue("driver-1", RoleDriver, "somewhere-else", "test-key", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "test-key", "pickup"); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("driver-1", RoleDriver, "pickup", "test-key", -time.Minute, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "test-key", "pickup"); err == nil {
		t.Fatal("expected expiry error")
	}
}
