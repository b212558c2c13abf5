package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MNEMO_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MNEMO_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingTimeout bounds the external embedding call inside the drift
// engine. On expiry the semantic tier is skipped, never assumed.
func EmbeddingTimeout() time.Duration {
	return durationEnv("EMBEDDING_TIMEOUT", 3*time.Second)
}

// AdvisoryProvider returns the configured advisory model provider.
// Defaults to "noop" (advisory absent). Valid values: http, noop, mock
func AdvisoryProvider() string {
	p := os.Getenv("ADVISORY_PROVIDER")
	if p == "" {
		return "noop"
	}
	return p
}

func AdvisoryURL() string {
	return os.Getenv("ADVISORY_URL")
}

func AdvisoryTimeout() time.Duration {
	return durationEnv("ADVISORY_TIMEOUT", 2*time.Second)
}

// AdvisoryAuthoritative reports whether the advisory action may replace
// the deterministic one when both agree above the probability floor.
// Default false: advisory is logged metadata only.
func AdvisoryAuthoritative() bool {
	return os.Getenv("POLICY_ADVISORY_AUTHORITATIVE") == "true"
}

// AdvisoryProbabilityFloor is the minimum advisory probability required
// before the suggestion is considered at all.
func AdvisoryProbabilityFloor() float64 {
	f, err := strconv.ParseFloat(os.Getenv("ADVISORY_PROBABILITY_FLOOR"), 64)
	if err != nil || f <= 0 || f > 1 {
		return 0.85
	}
	return f
}

// APIKey returns the static bearer token required on /v1 routes.
// Empty means auth is disabled (local development).
func APIKey() string {
	return os.Getenv("MNEMO_API_KEY")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// DecayInterval is how often the background trust decay sweep runs.
func DecayInterval() time.Duration {
	return durationEnv("DECAY_INTERVAL", 1*time.Hour)
}

// GateAskClarify selects ask_clarify mode (emit the resolution question)
// instead of uncertain (present both values) for open hard conflicts.
func GateAskClarify() bool {
	return os.Getenv("GATE_ASK_CLARIFY") == "true"
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
