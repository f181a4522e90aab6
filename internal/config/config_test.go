package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
storage:
  driver: memory
discovery:
  default_radius_km: 10
  max_results: 40
matching:
  pending_ttl: 72h
chat:
  max_message_length: 500
positions:
  retain_per_vessel: 5
realtime:
  ping_interval: 5s
  heartbeat_timeout: 15s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Storage.Driver != StorageDriverMemory {
		t.Fatalf("unexpected storage driver: %s", cfg.Storage.Driver)
	}
	if cfg.Discovery.DefaultRadiusKM != 10 {
		t.Fatalf("unexpected default radius: %v", cfg.Discovery.DefaultRadiusKM)
	}
	if cfg.Discovery.MaxResults != 40 {
		t.Fatalf("unexpected max results: %d", cfg.Discovery.MaxResults)
	}
	if cfg.Matching.PendingTTL != 72*time.Hour {
		t.Fatalf("unexpected pending ttl: %s", cfg.Matching.PendingTTL)
	}
	if cfg.Chat.MaxMessageLength != 500 {
		t.Fatalf("unexpected max message length: %d", cfg.Chat.MaxMessageLength)
	}
	if cfg.Positions.RetainPerVessel != 5 {
		t.Fatalf("unexpected retain per vessel: %d", cfg.Positions.RetainPerVessel)
	}
	if cfg.Realtime.HeartbeatTimeout != 15*time.Second {
		t.Fatalf("unexpected heartbeat timeout: %s", cfg.Realtime.HeartbeatTimeout)
	}

	if cfg.Discovery.MaxRadiusKM != 100 {
		t.Fatalf("max radius default should stay 100")
	}
	if cfg.Discovery.RecencyWindow != 2*time.Hour {
		t.Fatalf("recency window default should stay 2h")
	}
	if cfg.Zones.MaxBBoxResults != 1000 {
		t.Fatalf("zone bbox cap default should stay 1000")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Fatalf("unexpected default storage driver: %s", cfg.Storage.Driver)
	}
	if cfg.Discovery.DefaultRadiusKM != 25 {
		t.Fatalf("unexpected default radius: %v", cfg.Discovery.DefaultRadiusKM)
	}
	if cfg.Matching.PendingTTL != 7*24*time.Hour {
		t.Fatalf("unexpected pending ttl: %s", cfg.Matching.PendingTTL)
	}
	if cfg.Chat.MaxMessageLength != 2000 {
		t.Fatalf("unexpected max message length: %d", cfg.Chat.MaxMessageLength)
	}
	if cfg.Positions.RetainPerVessel != 20 {
		t.Fatalf("unexpected retain per vessel: %d", cfg.Positions.RetainPerVessel)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("POSITIONS_RETAIN_PER_VESSEL", "7")
	t.Setenv("REALTIME_PING_INTERVAL", "2s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Fatalf("unexpected storage driver: %s", cfg.Storage.Driver)
	}
	if cfg.Positions.RetainPerVessel != 7 {
		t.Fatalf("unexpected retain per vessel: %d", cfg.Positions.RetainPerVessel)
	}
	if cfg.Realtime.PingInterval != 2*time.Second {
		t.Fatalf("unexpected ping interval: %s", cfg.Realtime.PingInterval)
	}
}

func TestLoadRejectsInvalidEnvValue(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MATCHING_PENDING_TTL", "a week")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected parse error for invalid duration")
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "prod")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error when auth.jwt_secret is the default in production")
	}
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STORAGE_DRIVER", "sqlite")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for unsupported storage driver")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"STORAGE_DRIVER",
		"POSTGRES_DSN",
		"POSTGRES_MAX_CONNS",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_USE_SSL",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"CHAT_TOXICITY_URL",
		"DISCOVERY_MAX_RESULTS",
		"MATCHING_PENDING_TTL",
		"MATCHING_LIKES_PER_MINUTE",
		"CHAT_MAX_MESSAGE_LENGTH",
		"REALTIME_PING_INTERVAL",
		"REALTIME_HEARTBEAT_TIMEOUT",
		"POSITIONS_RETAIN_PER_VESSEL",
		"JOBS_CLEANUP_INTERVAL",
		"NOTIFY_ENABLED",
	} {
		t.Setenv(key, "")
	}
}
