package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "SESSION_TTL", "MIN_ADVANCE_HOURS", "NLU_CONFIDENCE_THRESHOLD", "NLU_TIMEOUT", "SESSION_STORE", "TIMEZONE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("expected default session ttl 2h, got %s", cfg.SessionTTL)
	}
	if cfg.MinAdvanceHours != 1 {
		t.Fatalf("expected default lead hours 1, got %d", cfg.MinAdvanceHours)
	}
	if cfg.NLUConfidenceThreshold != 0.7 {
		t.Fatalf("expected default confidence threshold 0.7, got %v", cfg.NLUConfidenceThreshold)
	}
	if cfg.NLUTimeout != 8*time.Second {
		t.Fatalf("expected default nlu timeout 8s, got %s", cfg.NLUTimeout)
	}
	if cfg.SessionStore != "memory" {
		t.Fatalf("expected memory session store, got %s", cfg.SessionStore)
	}
	if cfg.Location().String() != "America/Bogota" {
		t.Fatalf("expected Bogota location, got %s", cfg.Location())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("SESSION_STORE", " Redis ")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("MIN_ADVANCE_HOURS", "2")
	t.Setenv("NLU_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("WHATSAPP_ENABLED", "false")
	t.Setenv("WORKER_COUNT", "not-a-number")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.SessionStore != "redis" {
		t.Fatalf("expected normalized session store, got %q", cfg.SessionStore)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Fatalf("expected session ttl override, got %s", cfg.SessionTTL)
	}
	if cfg.MinAdvanceHours != 2 {
		t.Fatalf("expected lead hours override, got %d", cfg.MinAdvanceHours)
	}
	if cfg.NLUConfidenceThreshold != 0.85 {
		t.Fatalf("expected threshold override, got %v", cfg.NLUConfidenceThreshold)
	}
	if cfg.WhatsAppEnabled {
		t.Fatalf("expected whatsapp disabled")
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("expected invalid worker count to fall back to default, got %d", cfg.WorkerCount)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", cfg.Location())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("BUSINESS_NAME=Barberia Test\nPORT=7070\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("BUSINESS_NAME", "")
	os.Unsetenv("BUSINESS_NAME")
	t.Setenv("PORT", "9999")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := Load()
	if cfg.BusinessName != "Barberia Test" {
		t.Fatalf("expected business name from env file, got %s", cfg.BusinessName)
	}
	if cfg.Port != "9999" {
		t.Fatalf("expected existing env to win, got %s", cfg.Port)
	}
}

func TestWebchatOriginsList(t *testing.T) {
	t.Setenv("WEBCHAT_ALLOWED_ORIGINS", " https://caballeros.example, ,https://www.caballeros.example ")
	cfg := Load()
	if len(cfg.WebchatOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.WebchatOrigins)
	}
	if cfg.WebchatOrigins[1] != "https://www.caballeros.example" {
		t.Fatalf("unexpected origin %q", cfg.WebchatOrigins[1])
	}

	t.Setenv("WEBCHAT_ALLOWED_ORIGINS", "")
	if got := Load().WebchatOrigins; got != nil {
		t.Fatalf("expected no origins, got %v", got)
	}
}
