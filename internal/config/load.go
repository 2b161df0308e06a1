package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables use the TASKBOT_ prefix with underscores for
// nesting (TASKBOT_DATABASE_URL, TASKBOT_TELEGRAM_BOT_TOKEN) and take
// precedence over file values. Returns a validated Config or an error.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults cover everything.
	}

	v.SetEnvPrefix("TASKBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not surface unset keys through Unmarshal, so bind the
	// keys we declared defaults or secrets for explicitly.
	for _, key := range allKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("telegram.api_base_url", "https://api.telegram.org")
	v.SetDefault("telegram.timeout_seconds", 30)

	v.SetDefault("queue.path", "data/queue")
	v.SetDefault("queue.in_memory", false)
	v.SetDefault("queue.reconcile_on_start", true)

	v.SetDefault("sweep.reminder_interval_seconds", 30)
	v.SetDefault("sweep.overdue_interval_seconds", 300)
	v.SetDefault("sweep.overdue_window_minutes", 60)
	v.SetDefault("sweep.notify_timeout_seconds", 30)

	v.SetDefault("calendar.enabled", false)
	v.SetDefault("calendar.timeout_seconds", 10)
}

func allKeys() []string {
	return []string{
		"server.port",
		"server.log_level",
		"database.url",
		"telegram.bot_token",
		"telegram.api_base_url",
		"telegram.timeout_seconds",
		"queue.path",
		"queue.in_memory",
		"queue.reconcile_on_start",
		"sweep.reminder_interval_seconds",
		"sweep.overdue_interval_seconds",
		"sweep.overdue_window_minutes",
		"sweep.notify_timeout_seconds",
		"calendar.enabled",
		"calendar.base_url",
		"calendar.token",
		"calendar.calendar_id",
		"calendar.timeout_seconds",
	}
}
