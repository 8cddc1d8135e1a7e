package config

import (
	"flag"
	"io"
)

// parseFlags applies command-line overrides. -c/-config is consumed by
// configPath but still declared here so the flag set accepts it.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("files-manager", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configFile string
	fs.StringVar(&configFile, "c", "", "path to YAML config file")
	fs.StringVar(&configFile, "config", "", "path to YAML config file")

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.HealthAddr, "health", cfg.HealthAddr, "gRPC health listen address")
	fs.StringVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "metrics server port")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging")
	fs.StringVar(&cfg.DatabaseDriver, "db-driver", cfg.DatabaseDriver, "memory, postgres or pgx")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.KVBackend, "kv", cfg.KVBackend, "memory or sqlite")
	fs.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "sqlite file for the kv store")
	fs.StringVar(&cfg.StorageBackend, "storage", cfg.StorageBackend, "local or s3")
	fs.StringVar(&cfg.FolderPath, "folder", cfg.FolderPath, "local storage folder")
	fs.StringVar(&cfg.S3.Bucket, "b", cfg.S3.Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3.BaseEndpoint, "e", cfg.S3.BaseEndpoint, "S3 base endpoint")
	fs.IntVar(&cfg.ThumbnailConcurrency, "thumb-workers", cfg.ThumbnailConcurrency, "thumbnail worker concurrency")
	fs.IntVar(&cfg.WelcomeConcurrency, "welcome-workers", cfg.WelcomeConcurrency, "welcome worker concurrency")
	fs.IntVar(&cfg.QueueMaxAttempts, "max-attempts", cfg.QueueMaxAttempts, "job delivery attempts")
	fs.DurationVar(&cfg.QueueBackoffBase, "backoff", cfg.QueueBackoffBase, "job retry backoff base")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session lifetime")

	return fs.Parse(args)
}
