package app

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_ReadsPrefixedEnv(t *testing.T) {
	t.Setenv("LIVEDECK_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("LIVEDECK_ACCESS_CODE_TTL", "2h")
	t.Setenv("LIVEDECK_ABUSE_MAX_ATTEMPTS", "3")
	t.Setenv("LIVEDECK_WS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LIVEDECK_PARTICIPANT_IDLE_TIMEOUT", "not-a-duration")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.AccessCodeTTL != 2*time.Hour {
		t.Fatalf("AccessCodeTTL=%s", cfg.AccessCodeTTL)
	}
	if cfg.AbuseMaxAttempts != 3 {
		t.Fatalf("AbuseMaxAttempts=%d", cfg.AbuseMaxAttempts)
	}
	if len(cfg.WSAllowedOrigins) != 2 || cfg.WSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("WSAllowedOrigins=%v", cfg.WSAllowedOrigins)
	}
	// Unparseable values fall back to the default.
	if cfg.ParticipantIdleTimeout != 30*time.Minute {
		t.Fatalf("ParticipantIdleTimeout=%s", cfg.ParticipantIdleTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "readiness needs db", mutate: func(c *Config) { c.ReadinessRequireDB = true }, wantErr: "READINESS_REQUIRE_DB"},
		{name: "migrate needs db", mutate: func(c *Config) { c.DBAutoMigrate = true }, wantErr: "DB_AUTO_MIGRATE"},
		{
			name:    "idle under cleanup interval",
			mutate:  func(c *Config) { c.ParticipantIdleTimeout = time.Minute; c.ParticipantCleanupInterval = 5 * time.Minute },
			wantErr: "PARTICIPANT_IDLE_TIMEOUT",
		},
		{name: "suspicious below max", mutate: func(c *Config) { c.AbuseSuspiciousThreshold = 2 }, wantErr: "ABUSE_SUSPICIOUS_THRESHOLD"},
		{name: "short secret", mutate: func(c *Config) { c.PresenterJWTSecret = "short" }, wantErr: "too short"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := LoadConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate err=%v want substring %q", err, tc.wantErr)
			}
		})
	}
}
