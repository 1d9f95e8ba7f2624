package app

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"assessly/internal/db"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "ASSESSLY"

// Config stores runtime configuration. Values come from flags, ASSESSLY_*
// environment variables and an optional assessly.yaml, in that order of
// precedence.
type Config struct {
	AppEnv   string `mapstructure:"app-env" validate:"oneof=development staging production test"`
	HTTPAddr string `mapstructure:"addr" validate:"required"`

	DBDriver          string `mapstructure:"db-driver" validate:"oneof=sqlite postgres"`
	DBDSN             string `mapstructure:"db" validate:"required"`
	DBMaxOpenConns    int    `mapstructure:"db-max-open-conns" validate:"gte=1"`
	DBMaxIdleConns    int    `mapstructure:"db-max-idle-conns" validate:"gte=0"`
	DBConnMaxLifeMins int    `mapstructure:"db-conn-max-lifetime-minutes" validate:"gte=1"`

	ImportRateLimitPerMin int `mapstructure:"import-rate-limit-per-minute" validate:"gte=1"`

	TickInterval              time.Duration `mapstructure:"tick-interval" validate:"gte=10ms"`
	SessionRetention          time.Duration `mapstructure:"session-retention" validate:"gte=1s"`
	DefaultQuestionCount      int           `mapstructure:"default-question-count" validate:"gte=1,lte=500"`
	DefaultSecondsPerQuestion int           `mapstructure:"default-seconds-per-question" validate:"gte=1,lte=3600"`

	LogLevel  string `mapstructure:"log-level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log-format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app-env", "development")
	v.SetDefault("addr", ":8080")
	v.SetDefault("db-driver", "sqlite")
	v.SetDefault("db", "assessly.db")
	v.SetDefault("db-max-open-conns", 10)
	v.SetDefault("db-max-idle-conns", 5)
	v.SetDefault("db-conn-max-lifetime-minutes", 15)
	v.SetDefault("import-rate-limit-per-minute", 30)
	v.SetDefault("tick-interval", time.Second)
	v.SetDefault("session-retention", 10*time.Minute)
	v.SetDefault("default-question-count", 10)
	v.SetDefault("default-seconds-per-question", 60)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
}

// NewViper returns a viper instance wired to the ASSESSLY_ environment and
// the usual config file locations. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("assessly")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/assessly")
	v.AddConfigPath("/etc/assessly")
	return v
}

// LoadConfig reads the config file if one exists, then decodes and validates
// the merged settings.
func LoadConfig(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}

func validateConfig(cfg Config) error {
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// PostgresPool maps the pool settings onto db.PostgresConfig.
func (c Config) PostgresPool() db.PostgresConfig {
	return db.PostgresConfig{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(c.DBConnMaxLifeMins) * time.Minute,
	}
}

// SlogLevel parses LogLevel; anything unknown logs at info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
