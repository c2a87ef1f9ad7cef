// Package config supplies the two configuration layers: the static bootstrap
// config read from file/env once at startup, and per-community settings that
// live in the database and can change at runtime.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/RoModerate/romoderate/pkg/log"
)

var (
	ErrReadConfig   = errors.New("failed to read config file")
	ErrFormatConfig = errors.New("config file format invalid")
	ErrSigningKey   = errors.New("jwt signing key must be set")
)

// Static is the process-level configuration. Values here require a restart to
// change; anything a moderator can edit lives in Settings instead.
type Static struct {
	HTTPHost            string   `mapstructure:"http_host"`
	HTTPPort            int      `mapstructure:"http_port"`
	HTTPLogEnabled      bool     `mapstructure:"http_log_enabled"`
	HTTPCORSEnabled     bool     `mapstructure:"http_cors_enabled"`
	HTTPCORSOrigins     []string `mapstructure:"http_cors_origins"`
	ExternalURL         string   `mapstructure:"external_url"`
	DatabaseDSN         string   `mapstructure:"database_dsn"`
	DatabaseAutoMigrate bool     `mapstructure:"database_auto_migrate"`
	DatabaseLogQueries  bool     `mapstructure:"database_log_queries"`
	DiscordEnabled      bool     `mapstructure:"discord_enabled"`
	DiscordToken        string   `mapstructure:"discord_token"`
	DiscordAppID        string   `mapstructure:"discord_app_id"`
	RobloxAPIBaseURL    string   `mapstructure:"roblox_api_base_url"`
	JWTSigningKey       string   `mapstructure:"jwt_signing_key"`
	SentryDSN           string   `mapstructure:"sentry_dsn"`
	LogLevel            string   `mapstructure:"log_level"`
	LogFilePath         string   `mapstructure:"log_file_path"`
	StandingPageSize    int      `mapstructure:"standing_page_size"`
	PProfEnabled        bool     `mapstructure:"pprof_enabled"`
	PrometheusEnabled   bool     `mapstructure:"prometheus_enabled"`
	GinMode             string   `mapstructure:"gin_mode"`
}

func (s Static) Addr() string {
	return fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)
}

func (s Static) SlogLevel() log.Level {
	return log.Level(s.LogLevel)
}

// ExtURLRaw builds an absolute dashboard URL for embeds and notifications.
func (s Static) ExtURLRaw(path string, args ...any) string {
	return strings.TrimSuffix(s.ExternalURL, "/") + fmt.Sprintf(strings.TrimSuffix(path, "/"), args...)
}

func setDefaultConfigValues() {
	defaults := map[string]any{
		"http_host":             "127.0.0.1",
		"http_port":             6006,
		"http_log_enabled":      true,
		"http_cors_enabled":     true,
		"http_cors_origins":     []string{"http://localhost:5173"},
		"external_url":          "http://localhost:6006",
		"database_auto_migrate": true,
		"database_log_queries":  false,
		"discord_enabled":       false,
		"roblox_api_base_url":   "https://apis.roblox.com",
		"standing_page_size":    25,
		"log_level":             "info",
		"pprof_enabled":         false,
		"prometheus_enabled":    true,
		"gin_mode":              "release",
	}

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// ReadStatic loads the static config from the given file path, falling back to
// romoderate.yml in the working directory, with RM_ prefixed env overrides.
func ReadStatic(cfgFile string) (Static, error) {
	setDefaultConfigValues()

	if cfgFile == "" {
		cfgFile = "romoderate.yml"
	}

	viper.SetConfigFile(cfgFile)
	viper.SetEnvPrefix("rm")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Static
	if errReadConfig := viper.ReadInConfig(); errReadConfig != nil {
		return config, errors.Join(errReadConfig, ErrReadConfig)
	}

	if errUnmarshal := viper.Unmarshal(&config, viper.DecodeHook(mapstructure.StringToSliceHookFunc(","))); errUnmarshal != nil {
		return config, errors.Join(errUnmarshal, ErrFormatConfig)
	}

	if strings.HasPrefix(config.DatabaseDSN, "pgx://") {
		config.DatabaseDSN = strings.Replace(config.DatabaseDSN, "pgx://", "postgres://", 1)
	}

	if config.JWTSigningKey == "" {
		return config, ErrSigningKey
	}

	return config, nil
}
