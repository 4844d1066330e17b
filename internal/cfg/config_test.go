package cfg

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("RESET_TOKEN_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")

	conf, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conf.HTTPPort == "" || conf.DBDriver != "postgres" || conf.StorageBackend != "local" {
		t.Fatalf("unexpected defaults: %+v", conf)
	}
	if conf.ResetTokenTTL != 10*time.Minute {
		t.Fatalf("reset ttl = %v", conf.ResetTokenTTL)
	}
	if len(conf.KafkaBrokers) != 0 {
		t.Fatalf("brokers = %v", conf.KafkaBrokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("KAFKA_BROKERS", " kafka:9092 , ,kafka2:9092")
	t.Setenv("RESET_TOKEN_TTL", "90s")
	t.Setenv("MAX_FILE_SIZE", "2048")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("BASE_URL", "https://tasks.example.com/")

	conf, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conf.DBDriver != "sqlite" {
		t.Fatalf("driver = %q", conf.DBDriver)
	}
	if strings.Join(conf.KafkaBrokers, "|") != "kafka:9092|kafka2:9092" {
		t.Fatalf("brokers = %v", conf.KafkaBrokers)
	}
	if conf.ResetTokenTTL != 90*time.Second || conf.MaxFileSize != 2048 || !conf.MinioUseSSL {
		t.Fatalf("unexpected values: %+v", conf)
	}
	if conf.BaseURL != "https://tasks.example.com" {
		t.Fatalf("base url = %q", conf.BaseURL)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":  {"JWT_SECRET": ""},
		"short secret":    {"JWT_SECRET": "short"},
		"unknown driver":  {"JWT_SECRET": testSecret, "DB_DRIVER": "oracle"},
		"minio no host":   {"JWT_SECRET": testSecret, "STORAGE_BACKEND": "minio", "MINIO_ENDPOINT": ""},
		"unknown storage": {"JWT_SECRET": testSecret, "STORAGE_BACKEND": "ftp"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DB_DRIVER", "")
			t.Setenv("STORAGE_BACKEND", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReadSkipsServerValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")
	conf := Read()
	if err := conf.ValidateDatabase(); err != nil {
		t.Fatalf("database config rejected: %v", err)
	}
	if err := conf.Validate(); err == nil {
		t.Fatal("server validation must still require JWT_SECRET")
	}

	conf.DBDriver = "mysql"
	if err := conf.ValidateDatabase(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}
