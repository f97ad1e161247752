package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Executor  ExecutorConfig  `mapstructure:"executor"  validate:"required"`
	Retention RetentionConfig `mapstructure:"retention" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains the settings for validating caller credentials.
type AuthConfig struct {
	// JWTSecret signs and verifies the bearer tokens carrying the
	// principal identity. This service only verifies; issuing tokens is
	// an external concern.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetimeMinutes bounds tokens minted by the operator tooling.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// ExecutorConfig tunes the background task executor.
type ExecutorConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`
}

// RetentionConfig tunes the expired-task sweeper.
type RetentionConfig struct {
	// TTLMinutes is how long a terminal task is kept before it becomes
	// eligible for removal (sets expires_at at the terminal transition).
	TTLMinutes int `mapstructure:"ttl_minutes" validate:"required,gt=0"`

	// SweepSchedule is a cron expression for the purge job.
	SweepSchedule string `mapstructure:"sweep_schedule" validate:"required"`
}
