package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Environment   string
	LogLevel      string
	AllowedOrigin string

	JWTSigningKey string
	TokenTTL      time.Duration
	TokenIssuer   string
	BcryptCost    int

	DatabaseURL string
	RedisURL    string

	MaxUploadBytes int64
	Engine         Engine
}

// Engine configures the outbound client for the recognition, matching and
// signing engine.
type Engine struct {
	BaseURL          string
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// Defaults. Exported so tests and main share them.
var (
	TokenTTL               = time.Hour
	EngineTimeout          = 30 * time.Second
	EngineCooldown         = 15 * time.Second
	EngineFailureThreshold = 5
	MaxUploadBytes         = int64(10 << 20)
)

// IsDevelopment reports whether the server runs with development defaults.
func (s Server) IsDevelopment() bool {
	return s.Environment == "" || s.Environment == "development"
}

// UsesDevSigningKey is true when no signing key was configured.
func (s Server) UsesDevSigningKey() bool {
	return s.JWTSigningKey == devSigningKey
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; values
// already in the environment win.
func FromEnv() Server {
	_ = godotenv.Load()

	return Server{
		Addr:           getString("DOCUCRED_ADDR", ":8080"),
		Environment:    strings.ToLower(getString("ENVIRONMENT", "development")),
		LogLevel:       getString("LOG_LEVEL", "info"),
		AllowedOrigin:  getString("ALLOWED_ORIGIN", "http://localhost:3000"),
		JWTSigningKey:  getString("JWT_SIGNING_KEY", devSigningKey),
		TokenTTL:       getDuration("TOKEN_TTL", TokenTTL),
		TokenIssuer:    getString("TOKEN_ISSUER", "docucred"),
		BcryptCost:     getInt("BCRYPT_COST", 0),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", int(MaxUploadBytes))),
		Engine: Engine{
			BaseURL:          strings.TrimRight(getString("ENGINE_URL", "http://localhost:8001"), "/"),
			Timeout:          getDuration("ENGINE_TIMEOUT", EngineTimeout),
			FailureThreshold: getInt("ENGINE_FAILURE_THRESHOLD", EngineFailureThreshold),
			Cooldown:         getDuration("ENGINE_COOLDOWN", EngineCooldown),
		},
	}
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Malformed values fall back to the default rather than failing startup.
func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
