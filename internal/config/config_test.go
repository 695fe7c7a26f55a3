package config

import (
	"testing"
	"time"
)

func TestDurationEnv(t *testing.T) {
	t.Setenv("TEST_TTL", "45m")
	if got := durationEnv("TEST_TTL", time.Hour); got != 45*time.Minute {
		t.Fatalf("expected 45m, got %s", got)
	}
	t.Setenv("TEST_TTL", "bogus")
	if got := durationEnv("TEST_TTL", time.Hour); got != time.Hour {
		t.Fatalf("expected fallback on invalid value, got %s", got)
	}
	if got := durationEnv("TEST_TTL_UNSET", 2*time.Hour); got != 2*time.Hour {
		t.Fatalf("expected fallback when unset, got %s", got)
	}
}

func TestIntEnv(t *testing.T) {
	t.Setenv("TEST_LIMIT", "240")
	if got := intEnv("TEST_LIMIT", 120); got != 240 {
		t.Fatalf("expected 240, got %d", got)
	}
	t.Setenv("TEST_LIMIT", "abc")
	if got := intEnv("TEST_LIMIT", 120); got != 120 {
		t.Fatalf("expected fallback on invalid value, got %d", got)
	}
}

func TestNotionEnabled(t *testing.T) {
	app := App{NotionAPIKey: "secret", NotionDatabaseID: "db"}
	if !app.NotionEnabled() {
		t.Fatal("expected enabled with key and database id")
	}
	app.NotionDatabaseID = ""
	if app.NotionEnabled() {
		t.Fatal("expected disabled without database id")
	}
}
