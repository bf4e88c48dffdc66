package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.HTTPAddr != ":8090" {
		t.Fatalf("http addr default: %s", cfg.HTTPAddr)
	}
	if cfg.UploadInterval != 5*time.Second || cfg.PollInterval != 3*time.Second {
		t.Fatalf("interval defaults: upload=%s poll=%s", cfg.UploadInterval, cfg.PollInterval)
	}
	if cfg.StaleAfter != 5*time.Minute {
		t.Fatalf("stale default: %s", cfg.StaleAfter)
	}
	if cfg.KafkaTopic != "ride-positions" || cfg.RedisGeoKey != "members_geo" {
		t.Fatalf("topic defaults: %s %s", cfg.KafkaTopic, cfg.RedisGeoKey)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("BACKEND_URL", "https://rides.example.com")
	t.Setenv("UPLOAD_INTERVAL", "2s")
	t.Setenv("STALE_AFTER", "90s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("AUTO_TRACK", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.BackendURL != "https://rides.example.com" {
		t.Fatalf("string overrides: %s %s", cfg.HTTPAddr, cfg.BackendURL)
	}
	if cfg.UploadInterval != 2*time.Second || cfg.StaleAfter != 90*time.Second {
		t.Fatalf("duration overrides: %s %s", cfg.UploadInterval, cfg.StaleAfter)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("broker list: %v", cfg.KafkaBrokers)
	}
	if !cfg.AutoTrack {
		t.Fatal("auto track not enabled")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level not lowered: %s", cfg.LogLevel)
	}
}

func TestInvalidDurationFails(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("invalid duration accepted")
	}
}

func TestInvalidBackendURLFails(t *testing.T) {
	t.Setenv("BACKEND_URL", "not a url")
	if _, err := Load(); err == nil {
		t.Fatal("invalid backend url accepted")
	}
}

func TestFileOverlayThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companion.yaml")
	body := []byte("http_addr: \":7777\"\npoll_interval: 7s\nmember_id: file-member\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("COMPANION_CONFIG", path)
	t.Setenv("MEMBER_ID", "env-member")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7777" {
		t.Fatalf("file value not applied: %s", cfg.HTTPAddr)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Fatalf("file duration not applied: %s", cfg.PollInterval)
	}
	// env wins over file
	if cfg.MemberID != "env-member" {
		t.Fatalf("env did not override file: %s", cfg.MemberID)
	}
}

func TestMissingFileFails(t *testing.T) {
	t.Setenv("COMPANION_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("missing config file ignored")
	}
}
