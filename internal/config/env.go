package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func parseEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	str("PORT", &cfg.HTTPAddr)
	// PORT may be a bare port number
	if cfg.HTTPAddr != "" && !strings.Contains(cfg.HTTPAddr, ":") {
		cfg.HTTPAddr = ":" + cfg.HTTPAddr
	}
	str("HEALTH_ADDR", &cfg.HealthAddr)
	str("METRICS_PORT", &cfg.MetricsPort)
	str("DATABASE_DRIVER", &cfg.DatabaseDriver)
	str("KV_BACKEND", &cfg.KVBackend)
	str("SQLITE_PATH", &cfg.SQLitePath)
	str("STORAGE_BACKEND", &cfg.StorageBackend)
	str("FOLDER_PATH", &cfg.FolderPath)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_BASE_ENDPOINT", &cfg.S3.BaseEndpoint)

	// a DSN alone is enough to switch to Postgres
	if v := getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseDSN = v
		if getenv("DATABASE_DRIVER") == "" && cfg.DatabaseDriver == "memory" {
			cfg.DatabaseDriver = "postgres"
		}
	}

	if v := getenv("DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEV: %w", err)
		}
		cfg.Dev = dev
	}
	if v := getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	return nil
}
