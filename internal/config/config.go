package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	Store          string        `mapstructure:"STORE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	AIURL            string        `mapstructure:"AI_URL"`
	AITimeout        time.Duration `mapstructure:"AI_TIMEOUT"`
	AssistantBaseURL string        `mapstructure:"ASSISTANT_BASE_URL"`
	AssistantModel   string        `mapstructure:"ASSISTANT_MODEL"`
	AssistantAPIKey  string        `mapstructure:"ASSISTANT_API_KEY"`
	EmbeddingURL     string        `mapstructure:"EMBEDDING_URL"`

	GeocoderURL       string `mapstructure:"GEOCODER_URL"`
	GeocoderUserAgent string `mapstructure:"GEOCODER_USER_AGENT"`
	CountryDefault    string `mapstructure:"COUNTRY_DEFAULT"`

	RedisURL string `mapstructure:"REDIS_URL"`
	NATSURL  string `mapstructure:"NATS_URL"`

	WeightsCacheTTL     time.Duration `mapstructure:"WEIGHTS_CACHE_TTL"`
	WeightsHistoryLimit int           `mapstructure:"WEIGHTS_HISTORY_LIMIT"`
	WeightsMinRecords   int           `mapstructure:"WEIGHTS_MIN_RECORDS"`
	AnomalyWindow       int           `mapstructure:"ANOMALY_WINDOW"`
	NearestOverride     bool          `mapstructure:"NEAREST_OVERRIDE"`
}

// Load reads .env and the environment. Missing .env is fine.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()
	return FromViper(v)
}

// FromViper applies defaults to v and decodes it. The CLI binds its flags onto v first.
func FromViper(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if cfg.Store == "" {
		cfg.Store = StorePostgres
	}
	return cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("AI_URL", "")
	v.SetDefault("AI_TIMEOUT", "8s")
	v.SetDefault("ASSISTANT_BASE_URL", "")
	v.SetDefault("ASSISTANT_MODEL", "")
	v.SetDefault("ASSISTANT_API_KEY", "")
	v.SetDefault("EMBEDDING_URL", "")
	v.SetDefault("GEOCODER_URL", "")
	v.SetDefault("GEOCODER_USER_AGENT", "reliefroute/1.0")
	v.SetDefault("COUNTRY_DEFAULT", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("WEIGHTS_CACHE_TTL", "5m")
	v.SetDefault("WEIGHTS_HISTORY_LIMIT", 200)
	v.SetDefault("WEIGHTS_MIN_RECORDS", 20)
	v.SetDefault("ANOMALY_WINDOW", 200)
	v.SetDefault("NEAREST_OVERRIDE", false)
}
