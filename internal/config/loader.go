// Package config loads service configuration from config.yaml, a .env
// file and SALESINGEST_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rpattn/salesingest/internal/db"
	"github.com/rpattn/salesingest/internal/storage"
)

// EnvPrefix prefixes every environment override, e.g. SALESINGEST_DATABASE_HOST.
const EnvPrefix = "SALESINGEST"

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Database db.Config
	Server   ServerConfig
	Storage  StorageConfig
	Mapping  MappingConfig
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadBytes int64
}

type StorageConfig struct {
	Backend string
	Dir     string
	S3      storage.S3Config
}

type MappingConfig struct {
	// AliasFile optionally points at a YAML alias catalog override.
	AliasFile string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxUploadBytes: 16 << 20,
		},
		Storage: StorageConfig{
			Backend: StorageLocal,
			Dir:     "uploads",
			S3:      storage.S3Config{Region: "us-east-1"},
		},
	}
}

// Load reads configPath/.env and configPath/config.yaml, both optional, and
// applies environment overrides.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(filepath.Join(configPath, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("[CONFIG] no config.yaml in %s, using defaults and env vars", configPath)
	} else {
		log.Printf("[CONFIG] loaded %s", v.ConfigFileUsed())
	}

	cfg.Database.Driver = strings.ToLower(v.GetString("database.driver"))
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.User = v.GetString("database.user")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.DBName = v.GetString("database.dbname")
	cfg.Database.SSLMode = v.GetString("database.sslmode")
	cfg.Database.SQLitePath = v.GetString("database.sqlite_path")

	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Server.AllowedOrigins = splitList(v.GetStringSlice("server.allowed_origins"))
	cfg.Server.MaxUploadBytes = v.GetInt64("server.max_upload_bytes")

	cfg.Storage.Backend = strings.ToLower(v.GetString("storage.backend"))
	cfg.Storage.Dir = v.GetString("storage.dir")
	cfg.Storage.S3 = storage.S3Config{
		Endpoint: v.GetString("storage.s3.endpoint"),
		Region:   v.GetString("storage.s3.region"),
		Bucket:   v.GetString("storage.s3.bucket"),
		KeyID:    v.GetString("storage.s3.key_id"),
		Secret:   v.GetString("storage.s3.secret"),
		Prefix:   v.GetString("storage.s3.prefix"),
	}

	cfg.Mapping.AliasFile = v.GetString("mapping.alias_file")

	return cfg, cfg.Validate()
}

// Validate rejects unknown drivers and backends.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case StorageLocal:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("storage.dir is required for local storage")
		}
	case StorageS3:
		if strings.TrimSpace(c.Storage.S3.Bucket) == "" {
			return errors.New("storage.s3.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.dbname", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.sqlite_path", cfg.Database.SQLitePath)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.max_upload_bytes", cfg.Server.MaxUploadBytes)

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("storage.s3.endpoint", cfg.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.region", cfg.Storage.S3.Region)
	v.SetDefault("storage.s3.bucket", cfg.Storage.S3.Bucket)
	v.SetDefault("storage.s3.key_id", cfg.Storage.S3.KeyID)
	v.SetDefault("storage.s3.secret", cfg.Storage.S3.Secret)
	v.SetDefault("storage.s3.prefix", cfg.Storage.S3.Prefix)

	v.SetDefault("mapping.alias_file", cfg.Mapping.AliasFile)
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
