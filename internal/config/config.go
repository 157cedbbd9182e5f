package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/llm"
)

type LLMProvider string

const (
	ProviderGroq   LLMProvider = "groq"
	ProviderVertex LLMProvider = "vertex"
	ProviderMock   LLMProvider = "mock"
)

type Config struct {
	Port string

	LLMProvider LLMProvider
	Groq        GroqConfig
	Vertex      VertexConfig
	Retry       RetryConfig

	StorageBackend string // "memory", "bolt", "redis" or "firestore"
	Table          string
	BoltPath       string
	RedisURL       string
	GCPProjectID   string

	SerializeSends bool

	LogLevel    string
	LogFilePath string
}

type GroqConfig struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
}

type VertexConfig struct {
	Location string
	Model    string
}

// RetryConfig applies to whichever completion provider is selected.
type RetryConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// envKey returns the first of keys that is set, or the first key when none is.
// Later keys are older names kept working.
func envKey(keys ...string) string {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return k
		}
	}
	return keys[0]
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

// getSecondsEnv reads a duration expressed in (possibly fractional) seconds.
func getSecondsEnv(key string, def time.Duration) time.Duration {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 {
		return def
	}
	return time.Duration(v * float64(time.Second))
}

// Load reads a .env file when present, then all env vars, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: error loading .env file: %v", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds the config from the process environment without validating it.
func FromEnv() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		LLMProvider: LLMProvider(strings.ToLower(getEnv("CHAT_LLM_PROVIDER", string(ProviderGroq)))),
		Groq: GroqConfig{
			APIKey:  os.Getenv("GROQ_API_KEY"),
			URL:     getEnv("GROQ_API_URL", llm.DefaultGroqURL),
			Model:   getEnv("GROQ_MODEL", llm.DefaultGroqModel),
			Timeout: getSecondsEnv("GROQ_TIMEOUT", llm.DefaultTimeout),
		},
		Vertex: VertexConfig{
			Location: getEnv("CHAT_GCP_LOCATION", "us-central1"),
			Model:    getEnv("CHAT_VERTEX_MODEL", llm.DefaultVertexModel),
		},
		Retry: RetryConfig{
			MaxRetries:  getIntEnv(envKey("LLM_MAX_RETRIES", "GROQ_MAX_RETRIES"), llm.DefaultMaxRetries),
			BackoffBase: getSecondsEnv(envKey("LLM_BACKOFF_BASE", "GROQ_BACKOFF_BASE"), llm.DefaultBackoffBase),
			BackoffCap:  getSecondsEnv(envKey("LLM_BACKOFF_CAP", "GROQ_BACKOFF_CAP"), llm.DefaultBackoffCap),
		},

		StorageBackend: strings.ToLower(getEnv("CHAT_STORAGE_BACKEND", "memory")),
		Table:          getEnv("CHAT_TABLE", "chats"),
		BoltPath:       getEnv("CHAT_BOLT_PATH", "data/chats.bolt"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),
		GCPProjectID:   getEnv("CHAT_GCP_PROJECT", ""),

		SerializeSends: getBoolEnv("CHAT_SERIALIZE_SENDS", false),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFilePath: getEnv("LOG_FILE_PATH", ""),
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.LLMProvider {
	case ProviderGroq:
		if c.Groq.APIKey == "" {
			problems = append(problems, "GROQ_API_KEY is required for the groq provider")
		}
	case ProviderVertex:
		if c.GCPProjectID == "" {
			problems = append(problems, "CHAT_GCP_PROJECT is required for the vertex provider")
		}
	case ProviderMock:
	default:
		problems = append(problems, fmt.Sprintf("unknown CHAT_LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.Retry.MaxRetries < 0 {
		problems = append(problems, "LLM_MAX_RETRIES must not be negative")
	}

	switch c.StorageBackend {
	case "memory", "redis", "bolt":
	case "firestore":
		if c.GCPProjectID == "" {
			problems = append(problems, "CHAT_GCP_PROJECT is required for firestore storage")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown CHAT_STORAGE_BACKEND %q", c.StorageBackend))
	}

	if c.Table == "" {
		problems = append(problems, "CHAT_TABLE must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
