package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const envPrefix = "LIVEDECK_"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" (default) or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBSchema      string
	DBAutoMigrate bool

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	AccessCodeTTL              time.Duration
	ParticipantIdleTimeout     time.Duration
	ParticipantCleanupInterval time.Duration

	AbuseWindow              time.Duration
	AbuseMaxAttempts         int
	AbuseSuspiciousThreshold int

	HTTPRateLimit  int
	HTTPRateWindow time.Duration
	TrustProxy     bool

	PresenterJWTSecret string
	PresenterJWTIssuer string

	// DevSeed inserts a demo presentation at startup.
	DevSeed bool

	WSDevInsecure       bool
	WSOriginRequired    bool
	WSAllowedOrigins    []string
	WSWriteTimeout      time.Duration
	WSReadIdleTimeout   time.Duration
	WSSendQueue         int
	WSHeartbeatInterval time.Duration
	WSHeartbeatTimeout  time.Duration
	WSRateEvents        int
	WSRateWindow        time.Duration
}

// LoadConfig loads Config from LIVEDECK_* environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString(envPrefix+"HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString(envPrefix+"LOG_LEVEL", "info"),
		LogFormat: EnvString(envPrefix+"LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration(envPrefix+"HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration(envPrefix+"HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration(envPrefix+"HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration(envPrefix+"HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt(envPrefix+"HTTP_MAX_HEADER_BYTES", 1<<20),

		CORSAllowedOrigins:   EnvCSV(envPrefix+"CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool(envPrefix+"CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt(envPrefix+"CORS_MAX_AGE_SECONDS", 600),

		DatabaseURL:   EnvString(envPrefix+"DATABASE_URL", ""),
		DBMaxConns:    EnvInt32(envPrefix+"DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32(envPrefix+"DB_MIN_CONNS", 0),
		DBSchema:      EnvString(envPrefix+"DB_SCHEMA", "livedeck"),
		DBAutoMigrate: EnvBool(envPrefix+"DB_AUTO_MIGRATE", false),

		ReadinessRequireDB: EnvBool(envPrefix+"READINESS_REQUIRE_DB", false),

		AccessCodeTTL:              EnvDuration(envPrefix+"ACCESS_CODE_TTL", 24*time.Hour),
		ParticipantIdleTimeout:     EnvDuration(envPrefix+"PARTICIPANT_IDLE_TIMEOUT", 30*time.Minute),
		ParticipantCleanupInterval: EnvDuration(envPrefix+"PARTICIPANT_CLEANUP_INTERVAL", 5*time.Minute),

		AbuseWindow:              EnvDuration(envPrefix+"ABUSE_WINDOW", 15*time.Minute),
		AbuseMaxAttempts:         EnvInt(envPrefix+"ABUSE_MAX_ATTEMPTS", 5),
		AbuseSuspiciousThreshold: EnvInt(envPrefix+"ABUSE_SUSPICIOUS_THRESHOLD", 20),

		HTTPRateLimit:  EnvInt(envPrefix+"HTTP_RATE_LIMIT", 120),
		HTTPRateWindow: EnvDuration(envPrefix+"HTTP_RATE_WINDOW", time.Minute),
		TrustProxy:     EnvBool(envPrefix+"TRUST_PROXY", false),

		PresenterJWTSecret: EnvString(envPrefix+"PRESENTER_JWT_SECRET", ""),
		PresenterJWTIssuer: EnvString(envPrefix+"PRESENTER_JWT_ISSUER", ""),

		DevSeed: EnvBool(envPrefix+"DEV_SEED", false),

		WSDevInsecure:       EnvBool(envPrefix+"WS_DEV_INSECURE", false),
		WSOriginRequired:    EnvBool(envPrefix+"WS_ORIGIN_REQUIRED", true),
		WSAllowedOrigins:    EnvCSV(envPrefix+"WS_ALLOWED_ORIGINS", []string{"http://localhost", "http://127.0.0.1"}),
		WSWriteTimeout:      EnvDuration(envPrefix+"WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadIdleTimeout:   EnvDuration(envPrefix+"WS_READ_IDLE_TIMEOUT", 2*time.Minute),
		WSSendQueue:         EnvInt(envPrefix+"WS_SEND_QUEUE", 256),
		WSHeartbeatInterval: EnvDuration(envPrefix+"WS_HEARTBEAT_INTERVAL", 25*time.Second),
		WSHeartbeatTimeout:  EnvDuration(envPrefix+"WS_HEARTBEAT_TIMEOUT", 5*time.Second),
		WSRateEvents:        EnvInt(envPrefix+"WS_RATE_EVENTS", 60),
		WSRateWindow:        EnvDuration(envPrefix+"WS_RATE_WINDOW", 10*time.Second),
	}
}

// Validate rejects inconsistent configuration at startup.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("HTTP_ADDR is empty"))
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want json or pretty", c.LogFormat))
	}
	if c.DBMinConns > c.DBMaxConns && c.DBMaxConns > 0 {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns))
	}
	if c.ReadinessRequireDB && c.DatabaseURL == "" {
		errs = append(errs, errors.New("READINESS_REQUIRE_DB set without DATABASE_URL"))
	}
	if c.DBAutoMigrate && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DB_AUTO_MIGRATE set without DATABASE_URL"))
	}
	if c.ParticipantIdleTimeout <= c.ParticipantCleanupInterval {
		errs = append(errs, errors.New("PARTICIPANT_IDLE_TIMEOUT must exceed PARTICIPANT_CLEANUP_INTERVAL"))
	}
	if c.AbuseSuspiciousThreshold < c.AbuseMaxAttempts {
		errs = append(errs, errors.New("ABUSE_SUSPICIOUS_THRESHOLD must be >= ABUSE_MAX_ATTEMPTS"))
	}
	if err := ValidateSecurityConfig(c); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
