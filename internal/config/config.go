package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the cold-chain backend.
type Config struct {
	Port      int
	Version   string
	Database  DatabaseConfig
	Models    ModelsConfig
	Oracle    OracleConfig
	Agent     AgentConfig
	Telemetry TelemetryConfig
	CORS      CORSConfig
}

type DatabaseConfig struct {
	// URL empty selects the in-memory store.
	URL string
}

type ModelsConfig struct {
	// Dir holds spoilage_model.xgb, routing_model.xgb, routing_meta.json.
	Dir string
}

type OracleConfig struct {
	APIKey   string
	Endpoint string
	Model    string
}

type AgentConfig struct {
	// ActionExpr, when set, replaces the keyword action detector with an
	// expr-lang expression over `reply`.
	ActionExpr string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded environment from .env")
	}

	return &Config{
		Port:    envInt("PORT", 8000),
		Version: envStr("COLDCHAIN_VERSION", "1.0.0"),
		Database: DatabaseConfig{
			URL: envStr("DATABASE_URL", ""),
		},
		Models: ModelsConfig{
			Dir: envStr("MODELS_DIR", "models"),
		},
		Oracle: OracleConfig{
			APIKey:   envStr("OPENAI_API_KEY", ""),
			Endpoint: envStr("OPENAI_BASE_URL", ""),
			Model:    envStr("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Agent: AgentConfig{
			ActionExpr: envStr("AGENT_ACTION_EXPR", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "coldchain-backend"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{envStr("CORS_ALLOWED_ORIGIN", "*")},
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
