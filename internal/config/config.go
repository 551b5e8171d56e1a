package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	MigrationsDir string
	CORSOrigin    string
	APIPrefix     string
	LogMode       string
	LogLevel      string

	JWTSecret    string
	JWTAlgorithm string
	AccessTTL    time.Duration
	BcryptCost   int

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	EmbeddingModel    string
	VectorDimension   int
	RelevanceFloor    float64
	SearchBackend     string
	EmbeddingCacheTTL time.Duration

	WebhookURL        string
	TeacherWebhookURL string
	TeacherEmail      string
	WebhookTimeout    time.Duration
	MaxUploadBytes    int64

	RedisURL       string
	MeiliURL       string
	MeiliMasterKey string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load reads configuration from the process environment. A `.env` file in the
// working directory is loaded first, and CONFIG_FILE may point at a YAML file
// of KEY: value pairs; real environment variables always win.
func Load() (Config, error) {
	_ = godotenv.Load()

	file := map[string]string{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		loaded, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		file = loaded
	}
	return fromLookup(func(key string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return file[key]
	}), nil
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return values, nil
}

func fromLookup(lookup func(string) string) Config {
	env := source{lookup: lookup}
	return Config{
		Addr:          env.str("API_ADDR", ":8000"),
		DatabaseURL:   env.str("DATABASE_URL", postgresURL(env)),
		MigrationsDir: env.str("MIGRATIONS_DIR", "./db/migrations"),
		CORSOrigin:    env.str("CORS_ORIGIN", "*"),
		APIPrefix:     strings.TrimRight(env.str("API_V1_PREFIX", "/api/v1"), "/"),
		LogMode:       env.str("LOG_MODE", "development"),
		LogLevel:      env.str("LOG_LEVEL", "info"),

		JWTSecret:    env.str("JWT_SECRET_KEY", "academic-helper-jwt-secret-key-2024"),
		JWTAlgorithm: env.str("JWT_ALGORITHM", "HS256"),
		AccessTTL:    time.Duration(env.int("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		BcryptCost:   env.int("BCRYPT_COST", 10),

		OpenAIAPIKey:      env.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     env.str("OPENAI_BASE_URL", ""),
		EmbeddingModel:    env.str("EMBEDDING_MODEL", "text-embedding-ada-002"),
		VectorDimension:   env.int("VECTOR_DIMENSION", 1536),
		RelevanceFloor:    env.float("RELEVANCE_FLOOR", 0.7),
		SearchBackend:     strings.ToLower(env.str("SEARCH_BACKEND", "pgvector")),
		EmbeddingCacheTTL: time.Duration(env.int("EMBEDDING_CACHE_TTL_SECONDS", 86400)) * time.Second,

		WebhookURL:        env.str("N8N_WEBHOOK_URL", ""),
		TeacherWebhookURL: env.str("N8N_TEACHER_WEBHOOK_URL", ""),
		TeacherEmail:      env.str("TEACHER_EMAIL", "instructor@example.com"),
		WebhookTimeout:    time.Duration(env.int("WEBHOOK_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxUploadBytes:    int64(env.int("MAX_UPLOAD_BYTES", 20<<20)),

		RedisURL:       env.str("REDIS_URL", ""),
		MeiliURL:       env.str("MEILI_URL", ""),
		MeiliMasterKey: env.str("MEILI_MASTER_KEY", ""),

		MinioEndpoint:  env.str("MINIO_ENDPOINT", ""),
		MinioAccessKey: env.str("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: env.str("MINIO_SECRET_KEY", ""),
		MinioBucket:    env.str("MINIO_BUCKET", "assignments"),
		MinioUseSSL:    env.bool("MINIO_USE_SSL", false),
	}
}

func postgresURL(env source) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		env.str("POSTGRES_USER", "student"),
		env.str("POSTGRES_PASSWORD", "secure_password_123"),
		env.str("POSTGRES_HOST", "localhost"),
		env.str("POSTGRES_PORT", "5432"),
		env.str("POSTGRES_DB", "academic_helper"),
	)
}

type source struct {
	lookup func(string) string
}

func (s source) str(key, fallback string) string {
	value := strings.TrimSpace(s.lookup(key))
	if value == "" {
		return fallback
	}
	return value
}

func (s source) int(key string, fallback int) int {
	value := s.str(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) float(key string, fallback float64) float64 {
	value := s.str(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) bool(key string, fallback bool) bool {
	value := s.str(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
