package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Voice match backends.
const (
	MatchBackendMemory   = "memory"
	MatchBackendPGVector = "pgvector"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Audio      AudioConfig
	Voice      VoiceConfig
	Attendance AttendanceConfig
	Cache      CacheConfig
	Samples    SamplesConfig
	Metrics    MetricsConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AudioConfig bounds audio capture.
type AudioConfig struct {
	ListenTimeout  time.Duration
	MaxUploadBytes int64
}

// VoiceConfig selects where identification runs.
type VoiceConfig struct {
	MatchBackend string
}

// AttendanceConfig fixes the timezone used to derive calendar days.
type AttendanceConfig struct {
	Timezone string
	Location *time.Location
}

// CacheConfig toggles the Redis snapshot cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// SamplesConfig controls archiving of enrollment voice samples.
type SamplesConfig struct {
	Enabled           bool
	StorageDir        string
	WorkerConcurrency int
	WorkerRetries     int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("AUDIO_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Audio = AudioConfig{
		ListenTimeout:  parseDuration(v.GetString("AUDIO_LISTEN_TIMEOUT"), 5*time.Second),
		MaxUploadBytes: maxUpload,
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("VOICE_MATCH_BACKEND")))
	switch backend {
	case MatchBackendMemory, MatchBackendPGVector:
	default:
		return nil, fmt.Errorf("unsupported VOICE_MATCH_BACKEND %q", backend)
	}
	cfg.Voice = VoiceConfig{MatchBackend: backend}

	tz := v.GetString("ATTENDANCE_TIMEZONE")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load ATTENDANCE_TIMEZONE %q: %w", tz, err)
	}
	cfg.Attendance = AttendanceConfig{Timezone: tz, Location: loc}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.Samples = SamplesConfig{
		Enabled:           v.GetBool("ENABLE_SAMPLE_ARCHIVE"),
		StorageDir:        v.GetString("SAMPLES_STORAGE_DIR"),
		WorkerConcurrency: v.GetInt("SAMPLES_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("SAMPLES_WORKER_RETRIES"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

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
	v.SetDefault("DB_NAME", "voice_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AUDIO_LISTEN_TIMEOUT", "5s")
	v.SetDefault("AUDIO_MAX_UPLOAD_BYTES", 20*1024*1024)
	v.SetDefault("VOICE_MATCH_BACKEND", MatchBackendMemory)
	v.SetDefault("ATTENDANCE_TIMEZONE", "UTC")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("ENABLE_SAMPLE_ARCHIVE", true)
	v.SetDefault("SAMPLES_STORAGE_DIR", "./enrollments")
	v.SetDefault("SAMPLES_WORKER_CONCURRENCY", 1)
	v.SetDefault("SAMPLES_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_METRICS", true)
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
