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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Notes      NotesConfig
	Chat       ChatConfig
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
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig bounds code issuance and controls code storage.
type AttendanceConfig struct {
	MinCodeDuration time.Duration
	MaxCodeDuration time.Duration
	CodeLength      int
	// CodeTTLMargin is added on top of the code duration when storing the
	// active code, so a submission arriving right after expiry still sees
	// the code and gets CODE_EXPIRED instead of NO_ACTIVE_CODE.
	CodeTTLMargin time.Duration
}

// NotesConfig controls note file storage and signed download links.
type NotesConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	CleanupWorkers   int
}

// ChatConfig tunes the messaging endpoints.
type ChatConfig struct {
	ContactsCacheTTL time.Duration
	MaxBodyLength    int
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
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Attendance = AttendanceConfig{
		MinCodeDuration: parseDuration(v.GetString("ATTENDANCE_MIN_CODE_DURATION"), 10*time.Second),
		MaxCodeDuration: parseDuration(v.GetString("ATTENDANCE_MAX_CODE_DURATION"), 10*time.Minute),
		CodeLength:      v.GetInt("ATTENDANCE_CODE_LENGTH"),
		CodeTTLMargin:   parseDuration(v.GetString("ATTENDANCE_CODE_TTL_MARGIN"), time.Minute),
	}

	maxNoteSize := v.GetInt64("NOTES_MAX_FILE_SIZE")
	if maxNoteSize <= 0 {
		maxNoteSize = 20 * 1024 * 1024
	}
	cfg.Notes = NotesConfig{
		StorageDir:       v.GetString("NOTES_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("NOTES_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("NOTES_SIGNED_URL_TTL"), time.Hour),
		MaxFileSizeBytes: maxNoteSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("NOTES_ALLOWED_MIME_TYPES")),
		CleanupWorkers:   v.GetInt("NOTES_CLEANUP_WORKERS"),
	}

	cfg.Chat = ChatConfig{
		ContactsCacheTTL: parseDuration(v.GetString("CHAT_CONTACTS_CACHE_TTL"), 5*time.Minute),
		MaxBodyLength:    v.GetInt("CHAT_MAX_BODY_LENGTH"),
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
	v.SetDefault("DB_NAME", "edubridge")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_MIN_CODE_DURATION", "10s")
	v.SetDefault("ATTENDANCE_MAX_CODE_DURATION", "10m")
	v.SetDefault("ATTENDANCE_CODE_LENGTH", 6)
	v.SetDefault("ATTENDANCE_CODE_TTL_MARGIN", "1m")

	v.SetDefault("NOTES_STORAGE_DIR", "./notes-files")
	v.SetDefault("NOTES_SIGNED_URL_SECRET", "dev_notes_secret")
	v.SetDefault("NOTES_SIGNED_URL_TTL", "1h")
	v.SetDefault("NOTES_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("NOTES_ALLOWED_MIME_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,text/plain")
	v.SetDefault("NOTES_CLEANUP_WORKERS", 1)

	v.SetDefault("CHAT_CONTACTS_CACHE_TTL", "5m")
	v.SetDefault("CHAT_MAX_BODY_LENGTH", 2000)
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
