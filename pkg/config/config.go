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

// Notifier drivers supported by the outbound messaging layer.
const (
	NotifierConsole  = "console"
	NotifierWhatsApp = "whatsapp"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Campaigns    CampaignConfig
	Gamification GamificationConfig
	Notifier     NotifierConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CampaignConfig tunes the campaign automation scheduler.
type CampaignConfig struct {
	AutomationEnabled          bool
	RunOnInstall               bool
	FeeReminderInterval        time.Duration
	WelcomeInterval            time.Duration
	AttendanceFollowupInterval time.Duration
	BirthdayInterval           time.Duration
	DedupeEnabled              bool
	DedupeWindow               time.Duration
	Workers                    int
	WorkerRetries              int
}

// GamificationConfig controls badge seeding and leaderboard caching.
type GamificationConfig struct {
	SeedOnStart      bool
	LeaderboardTTL   time.Duration
	LeaderboardLimit int
}

// NotifierConfig selects and configures the outbound message channel.
type NotifierConfig struct {
	Driver     string
	APIURL     string
	Token      string
	SenderID   string
	Timeout    time.Duration
	MaxRetries int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Campaigns = CampaignConfig{
		AutomationEnabled:          v.GetBool("ENABLE_CAMPAIGN_AUTOMATION"),
		RunOnInstall:               v.GetBool("CAMPAIGN_RUN_ON_INSTALL"),
		FeeReminderInterval:        parseDuration(v.GetString("CAMPAIGN_FEE_REMINDER_INTERVAL"), 24*time.Hour),
		WelcomeInterval:            parseDuration(v.GetString("CAMPAIGN_WELCOME_INTERVAL"), time.Hour),
		AttendanceFollowupInterval: parseDuration(v.GetString("CAMPAIGN_ATTENDANCE_FOLLOWUP_INTERVAL"), 7*24*time.Hour),
		BirthdayInterval:           parseDuration(v.GetString("CAMPAIGN_BIRTHDAY_INTERVAL"), 24*time.Hour),
		DedupeEnabled:              v.GetBool("CAMPAIGN_DEDUPE_ENABLED"),
		DedupeWindow:               parseDuration(v.GetString("CAMPAIGN_DEDUPE_WINDOW"), 24*time.Hour),
		Workers:                    v.GetInt("CAMPAIGN_WORKERS"),
		WorkerRetries:              v.GetInt("CAMPAIGN_WORKER_RETRIES"),
	}

	cfg.Gamification = GamificationConfig{
		SeedOnStart:      v.GetBool("GAMIFICATION_SEED_ON_START"),
		LeaderboardTTL:   parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), 5*time.Minute),
		LeaderboardLimit: v.GetInt("LEADERBOARD_LIMIT"),
	}

	cfg.Notifier = NotifierConfig{
		Driver:     strings.ToLower(v.GetString("NOTIFIER_DRIVER")),
		APIURL:     v.GetString("WHATSAPP_API_URL"),
		Token:      v.GetString("WHATSAPP_TOKEN"),
		SenderID:   v.GetString("WHATSAPP_SENDER_ID"),
		Timeout:    parseDuration(v.GetString("WHATSAPP_TIMEOUT"), 10*time.Second),
		MaxRetries: v.GetInt("WHATSAPP_MAX_RETRIES"),
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
	v.SetDefault("DB_NAME", "sports_academy")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "sports-academy")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CAMPAIGN_AUTOMATION", true)
	v.SetDefault("CAMPAIGN_RUN_ON_INSTALL", false)
	v.SetDefault("CAMPAIGN_FEE_REMINDER_INTERVAL", "24h")
	v.SetDefault("CAMPAIGN_WELCOME_INTERVAL", "1h")
	v.SetDefault("CAMPAIGN_ATTENDANCE_FOLLOWUP_INTERVAL", "168h")
	v.SetDefault("CAMPAIGN_BIRTHDAY_INTERVAL", "24h")
	v.SetDefault("CAMPAIGN_DEDUPE_ENABLED", true)
	v.SetDefault("CAMPAIGN_DEDUPE_WINDOW", "24h")
	v.SetDefault("CAMPAIGN_WORKERS", 2)
	v.SetDefault("CAMPAIGN_WORKER_RETRIES", 3)

	v.SetDefault("GAMIFICATION_SEED_ON_START", true)
	v.SetDefault("LEADERBOARD_CACHE_TTL", "5m")
	v.SetDefault("LEADERBOARD_LIMIT", 10)

	v.SetDefault("NOTIFIER_DRIVER", NotifierConsole)
	v.SetDefault("WHATSAPP_API_URL", "")
	v.SetDefault("WHATSAPP_TOKEN", "")
	v.SetDefault("WHATSAPP_SENDER_ID", "")
	v.SetDefault("WHATSAPP_TIMEOUT", "10s")
	v.SetDefault("WHATSAPP_MAX_RETRIES", 3)
}

// isMissingFile reports a missing explicit .env file; viper surfaces it as an
// fs error rather than ConfigFileNotFoundError when SetConfigFile is used.
func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
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
