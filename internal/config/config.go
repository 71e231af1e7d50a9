// Package config provides configuration management for the Stock Insight application.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Providers ProvidersConfig `mapstructure:"providers" validate:"required"`
	ML        MLConfig        `mapstructure:"ml" validate:"required"`
	Backtest  BacktestConfig  `mapstructure:"backtest" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// ProvidersConfig represents the market-data provider configuration
type ProvidersConfig struct {
	TWSE ProviderConfig `mapstructure:"twse" validate:"required"`

	// TTL for cached provider responses, trading-hours aware.
	CacheTTLOpenMinutes   int `mapstructure:"cache_ttl_open_minutes" validate:"required,gt=0"`
	CacheTTLClosedMinutes int `mapstructure:"cache_ttl_closed_minutes" validate:"required,gt=0"`
}

// ProviderConfig represents a single data-provider endpoint
type ProviderConfig struct {
	BaseURL        string  `mapstructure:"base_url" validate:"required,url"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
	MaxRetries     int     `mapstructure:"max_retries" validate:"gte=0"`
}

// MLConfig represents model training and serving configuration
type MLConfig struct {
	ArtifactDir        string  `mapstructure:"artifact_dir" validate:"required"`
	PredictDays        int     `mapstructure:"predict_days" validate:"required,gt=0"`
	MinTrainingSamples int     `mapstructure:"min_training_samples" validate:"required,gt=0"`
	MinNewSamples      int     `mapstructure:"min_new_samples" validate:"required,gt=0"`
	ReplayRatio        float64 `mapstructure:"replay_ratio" validate:"gte=0,lte=1"`
	IncrementalRounds  int     `mapstructure:"incremental_rounds" validate:"required,gt=0"`
	MaxMissingRatio    float64 `mapstructure:"max_missing_ratio" validate:"gt=0,lte=1"`
	Seed               int64   `mapstructure:"seed"`
	CacheTTLSeconds    int     `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	CacheMaxSize       int     `mapstructure:"cache_max_size" validate:"required,gt=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	InitialCapital   float64 `mapstructure:"initial_capital" validate:"required,gt=0"`
	PositionFraction float64 `mapstructure:"position_fraction" validate:"required,gt=0,lte=1"`
	LotSize          int64   `mapstructure:"lot_size" validate:"required,gt=0"`
	MinShares        int64   `mapstructure:"min_shares" validate:"required,gt=0"`
	FeeRate          float64 `mapstructure:"fee_rate" validate:"gte=0,lte=0.1"`
	TaxRate          float64 `mapstructure:"tax_rate" validate:"gte=0,lte=0.1"`
	SlippageRate     float64 `mapstructure:"slippage_rate" validate:"gte=0,lte=0.1"`
	RiskFreeRate     float64 `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
	OutputPath       string  `mapstructure:"output_path" validate:"required"`
}

// SchedulerConfig represents periodic retraining configuration
type SchedulerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	RetrainingCron string `mapstructure:"retraining_cron"`
	DataSource     string `mapstructure:"data_source"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
