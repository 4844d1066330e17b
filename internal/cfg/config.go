package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string
	GRPCPort string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	JWTSecret      string
	JWTTTL         time.Duration
	ResetTokenTTL  time.Duration
	ResetSweepSpec string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	StorageBackend    string
	UploadDir         string
	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioBucket       string
	MinioUseSSL       bool
	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	MaxFileSize       int64
	BaseURL           string
	HTTPSEnabled      bool
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	MailFrom          string
	AllowedOrigins    []string
	TrustedProxies    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	ShutdownGracePeriod time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
}

// Load reads the environment and validates everything the API server needs.
func Load() (Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read читает .env и переменные окружения без проверки.
func Read() Config {
	_ = godotenv.Load(".env")

	return Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "9090"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "tasks"),
		SQLitePath: getEnv("SQLITE_PATH", "tasks.db"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         getEnvDuration("JWT_TTL", time.Hour),
		ResetTokenTTL:  getEnvDuration("RESET_TOKEN_TTL", 10*time.Minute),
		ResetSweepSpec: getEnv("RESET_SWEEP_SPEC", "@every 5m"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: parseCSVEnv("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "task-events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "task-notifier"),

		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		UploadDir:       getEnv("UPLOAD_DIR", "static/uploads"),
		MinioEndpoint:   os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:  os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:     getEnv("MINIO_BUCKET", "task-documents"),
		MinioUseSSL:     getEnvBool("MINIO_USE_SSL", false),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "tasks"),
		MongoCollection: getEnv("MONGODB_COLLECTION", "task_documents"),
		MaxFileSize:     getEnvInt64("MAX_FILE_SIZE", 10*1024*1024),
		BaseURL:         strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		HTTPSEnabled:    getEnvBool("HTTPS_ENABLED", false),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@localhost"),

		AllowedOrigins:    parseCSVEnv("ALLOWED_ORIGINS"),
		TrustedProxies:    parseCSVEnv("TRUSTED_PROXIES"),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		ShutdownGracePeriod: getEnvDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		ReadTimeout:         getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:        getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:         getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
	}
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	switch c.StorageBackend {
	case "local":
	case "minio":
		if c.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required for minio storage")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be positive")
	}
	return nil
}

// ValidateDatabase checks only the DB_* keys; used by tools that need nothing else.
func (c Config) ValidateDatabase() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
		return nil
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
}

// PostgresDSN собирает строку подключения к Postgres.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
	)
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseCSVEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
