package config

import (
	"errors"
	"os"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	QR        QRConfig
	Documents DocumentsConfig
	Breaker   BreakerConfig
	Stats     StatsConfig
	Notify    NotifyConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig only verifies tokens minted elsewhere.
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

// QRConfig tunes raster image generation for issued codes.
type QRConfig struct {
	ImageDir   string
	Width      int
	Margin     int
	DarkColor  string
	LightColor string
}

// DocumentsConfig governs printable document export and download links.
type DocumentsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	PageFormat      string
	MarginMM        float64
	CleanupInterval time.Duration
}

// BreakerConfig protects the rendering backend.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// StatsConfig controls issuance statistics caching.
type StatsConfig struct {
	CacheTTL time.Duration
}

// NotifyConfig sizes the notification worker pool.
type NotifyConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
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
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.QR = QRConfig{
		ImageDir:   v.GetString("QR_IMAGE_DIR"),
		Width:      v.GetInt("QR_IMAGE_WIDTH"),
		Margin:     v.GetInt("QR_IMAGE_MARGIN"),
		DarkColor:  v.GetString("QR_DARK_COLOR"),
		LightColor: v.GetString("QR_LIGHT_COLOR"),
	}

	cfg.Documents = DocumentsConfig{
		StorageDir:      v.GetString("DOCUMENTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("DOCUMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOCUMENTS_SIGNED_URL_TTL"), 24*time.Hour),
		PageFormat:      v.GetString("DOCUMENTS_PAGE_FORMAT"),
		MarginMM:        v.GetFloat64("DOCUMENTS_MARGIN_MM"),
		CleanupInterval: parseDuration(v.GetString("DOCUMENTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Breaker = BreakerConfig{
		MaxRequests:      v.GetUint32("RENDER_BREAKER_MAX_REQUESTS"),
		Interval:         parseDuration(v.GetString("RENDER_BREAKER_INTERVAL"), time.Minute),
		Timeout:          parseDuration(v.GetString("RENDER_BREAKER_TIMEOUT"), 30*time.Second),
		FailureThreshold: v.GetUint32("RENDER_BREAKER_FAILURES"),
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Notify = NotifyConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		MaxRetries: v.GetInt("NOTIFY_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 2*time.Second),
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
	v.SetDefault("DB_NAME", "packing_list")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("QR_IMAGE_DIR", "./qr_images")
	v.SetDefault("QR_IMAGE_WIDTH", 300)
	v.SetDefault("QR_IMAGE_MARGIN", 2)
	v.SetDefault("QR_DARK_COLOR", "#000000")
	v.SetDefault("QR_LIGHT_COLOR", "#FFFFFF")

	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./documents")
	v.SetDefault("DOCUMENTS_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("DOCUMENTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("DOCUMENTS_PAGE_FORMAT", "A4")
	v.SetDefault("DOCUMENTS_MARGIN_MM", 10)
	v.SetDefault("DOCUMENTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("RENDER_BREAKER_MAX_REQUESTS", 1)
	v.SetDefault("RENDER_BREAKER_INTERVAL", "1m")
	v.SetDefault("RENDER_BREAKER_TIMEOUT", "30s")
	v.SetDefault("RENDER_BREAKER_FAILURES", 5)

	v.SetDefault("STATS_CACHE_TTL", "2m")

	v.SetDefault("NOTIFY_WORKERS", 1)
	v.SetDefault("NOTIFY_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "2s")
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
