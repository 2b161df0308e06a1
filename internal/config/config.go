package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Telegram TelegramConfig `mapstructure:"telegram" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Sweep    SweepConfig    `mapstructure:"sweep"    validate:"required"`
	Calendar CalendarConfig `mapstructure:"calendar"`
}

// ServerConfig contains the ops HTTP server and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the durable task store settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// TelegramConfig contains the delivery channel settings.
type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"       validate:"required"`
	APIBaseURL     string `mapstructure:"api_base_url"    validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// QueueConfig contains the reminder queue settings. The queue directory is a
// restart-surviving cache, not a source of truth; ReconcileOnStart rebuilds
// it from unsent reminders in the durable store.
type QueueConfig struct {
	Path             string `mapstructure:"path"               validate:"required_unless=InMemory true"`
	InMemory         bool   `mapstructure:"in_memory"`
	ReconcileOnStart bool   `mapstructure:"reconcile_on_start"`
}

// SweepConfig contains the intervals and bounds for both sweepers.
type SweepConfig struct {
	ReminderIntervalSeconds int `mapstructure:"reminder_interval_seconds" validate:"required,gt=0"`
	OverdueIntervalSeconds  int `mapstructure:"overdue_interval_seconds"  validate:"required,gt=0"`
	OverdueWindowMinutes    int `mapstructure:"overdue_window_minutes"    validate:"required,gt=0"`
	NotifyTimeoutSeconds    int `mapstructure:"notify_timeout_seconds"    validate:"required,gt=0"`
}

// CalendarConfig contains the optional calendar collaborator settings.
// When disabled, event creation and deletion are no-ops.
type CalendarConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Token          string `mapstructure:"token"`
	CalendarID     string `mapstructure:"calendar_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// ReminderInterval returns the due-reminder sweep interval as a duration.
func (c SweepConfig) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderIntervalSeconds) * time.Second
}

// OverdueInterval returns the overdue-task sweep interval as a duration.
func (c SweepConfig) OverdueInterval() time.Duration {
	return time.Duration(c.OverdueIntervalSeconds) * time.Second
}

// OverdueWindow returns the post-deadline notification window as a duration.
func (c SweepConfig) OverdueWindow() time.Duration {
	return time.Duration(c.OverdueWindowMinutes) * time.Minute
}

// NotifyTimeout returns the per-delivery deadline as a duration.
func (c SweepConfig) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}
