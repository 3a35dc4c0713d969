package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Uploads     UploadsConfig
	Anonymizer  AnonymizerConfig
	Marketplace MarketplaceConfig
	Downloads   DownloadsConfig
	Statements  StatementsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// JWTConfig carries the shared secret used to validate bearer tokens issued
// by the identity provider. Token issuance lives outside this service.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadsConfig governs raw dataset intake.
type UploadsConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// AnonymizerConfig describes the external anonymization transform: one input
// path, one output path, exit status 0 means success.
type AnonymizerConfig struct {
	Command     string
	ExtraArgs   []string
	OutputDir   string
	Timeout     time.Duration
	Workers     int
	QueueBuffer int
}

// MarketplaceConfig tunes listing cache behaviour and preview size.
type MarketplaceConfig struct {
	CacheTTL    time.Duration
	PreviewRows int
}

// DownloadsConfig controls signed download URLs for anonymized artifacts.
type DownloadsConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// StatementsConfig gates seller revenue statement exports.
type StatementsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("REDIS_ENABLED"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 50 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileSizeBytes: maxUploadSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
	}

	cfg.Anonymizer = AnonymizerConfig{
		Command:     v.GetString("ANONYMIZER_COMMAND"),
		ExtraArgs:   splitAndTrim(v.GetString("ANONYMIZER_EXTRA_ARGS")),
		OutputDir:   v.GetString("ANONYMIZER_OUTPUT_DIR"),
		Timeout:     parseDuration(v.GetString("ANONYMIZER_TIMEOUT"), 10*time.Minute),
		Workers:     v.GetInt("ANONYMIZER_WORKERS"),
		QueueBuffer: v.GetInt("ANONYMIZER_QUEUE_BUFFER"),
	}

	cfg.Marketplace = MarketplaceConfig{
		CacheTTL:    parseDuration(v.GetString("MARKETPLACE_CACHE_TTL"), time.Minute),
		PreviewRows: v.GetInt("MARKETPLACE_PREVIEW_ROWS"),
	}

	cfg.Downloads = DownloadsConfig{
		SignedURLSecret: v.GetString("DOWNLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOWNLOADS_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.Statements = StatementsConfig{
		Enabled: v.GetBool("ENABLE_STATEMENTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "data_marketplace")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ENABLED", false)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "text/csv,application/csv,text/plain")

	v.SetDefault("ANONYMIZER_COMMAND", "python3")
	v.SetDefault("ANONYMIZER_EXTRA_ARGS", "anonymize.py")
	v.SetDefault("ANONYMIZER_OUTPUT_DIR", "./anonymized")
	v.SetDefault("ANONYMIZER_TIMEOUT", "10m")
	v.SetDefault("ANONYMIZER_WORKERS", 2)
	v.SetDefault("ANONYMIZER_QUEUE_BUFFER", 16)

	v.SetDefault("MARKETPLACE_CACHE_TTL", "1m")
	v.SetDefault("MARKETPLACE_PREVIEW_ROWS", 5)

	v.SetDefault("DOWNLOADS_SIGNED_URL_SECRET", "dev_downloads_secret")
	v.SetDefault("DOWNLOADS_SIGNED_URL_TTL", "30m")

	v.SetDefault("ENABLE_STATEMENTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
