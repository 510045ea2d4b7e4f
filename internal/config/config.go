// Package config provides configuration management for the QuantLab backtester.
package config

import (
	"fmt"
	"time"

	"github.com/yourusername/quantlab/internal/models"
)

// DateLayout is the layout used for dates in configuration files
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	DataSource  DataSourceConfig  `mapstructure:"data_source" validate:"required"`
	Backtest    BacktestConfig    `mapstructure:"backtest" validate:"required"`
	Strategy    StrategyConfig    `mapstructure:"strategy" validate:"required"`
	Optimizer   OptimizerConfig   `mapstructure:"optimizer"`
	WalkForward WalkForwardConfig `mapstructure:"walk_forward"`
	MonteCarlo  MonteCarloConfig  `mapstructure:"monte_carlo"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	AWS         AWSConfig         `mapstructure:"aws"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration.
// Validation only applies when Enabled is set.
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_if=Enabled true"`
	User               string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"omitempty,gt=0"`
}

// DataSourceConfig selects and configures the historical price provider
type DataSourceConfig struct {
	Type            string           `mapstructure:"type" validate:"required,datasource"`
	Interval        string           `mapstructure:"interval" validate:"required"`
	CSVDir          string           `mapstructure:"csv_dir"`
	HTTP            HTTPSourceConfig `mapstructure:"http"`
	CacheEnabled    bool             `mapstructure:"cache_enabled"`
	CacheTTLSeconds int              `mapstructure:"cache_ttl_seconds" validate:"omitempty,gt=0"`
}

// HTTPSourceConfig configures the remote bar feed
type HTTPSourceConfig struct {
	BaseURL        string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
	MaxRetries     int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	Symbol             string  `mapstructure:"symbol" validate:"required"`
	StartDate          string  `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string  `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	InitialCapital     float64 `mapstructure:"initial_capital" validate:"required,gt=0"`
	RiskFreeRate       float64 `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
	TradingDaysPerYear int     `mapstructure:"trading_days_per_year" validate:"required,gt=0"`
	OutputPath         string  `mapstructure:"output_path"`
	PersistResults     bool    `mapstructure:"persist_results"`
}

// StrategyConfig names the strategy implementation and its settings
type StrategyConfig struct {
	Type                  string `mapstructure:"type" validate:"required"`
	models.StrategyConfig `mapstructure:",squash"`
}

// ParameterRange is an inclusive numeric sweep of one strategy parameter
type ParameterRange struct {
	Name string  `mapstructure:"name" validate:"required"`
	Min  float64 `mapstructure:"min"`
	Max  float64 `mapstructure:"max" validate:"gtefield=Min"`
	Step float64 `mapstructure:"step" validate:"gt=0"`
}

// OptimizerConfig represents grid search configuration
type OptimizerConfig struct {
	Workers         int              `mapstructure:"workers" validate:"omitempty,gt=0"`
	Metric          string           `mapstructure:"metric"`
	TopK            int              `mapstructure:"top_k" validate:"gte=0"`
	ParameterRanges []ParameterRange `mapstructure:"parameter_ranges" validate:"dive"`
}

// WalkForwardConfig represents rolling train/test configuration
type WalkForwardConfig struct {
	TrainPeriodDays int  `mapstructure:"train_period_days" validate:"omitempty,gt=0"`
	TestPeriodDays  int  `mapstructure:"test_period_days" validate:"omitempty,gt=0"`
	StepDays        int  `mapstructure:"step_days" validate:"gte=0"`
	Optimize        bool `mapstructure:"optimize"`
}

// MonteCarloConfig represents trade bootstrap configuration
type MonteCarloConfig struct {
	Enabled    bool  `mapstructure:"enabled"`
	Iterations int   `mapstructure:"iterations" validate:"omitempty,gt=0"`
	Seed       int64 `mapstructure:"seed"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// ScheduleConfig lists recurring backtest jobs
type ScheduleConfig struct {
	Jobs []JobConfig `mapstructure:"jobs" validate:"dive"`
}

// JobConfig is one cron-triggered run over a trailing window
type JobConfig struct {
	Name         string `mapstructure:"name" validate:"required"`
	Cron         string `mapstructure:"cron" validate:"required"`
	Mode         string `mapstructure:"mode" validate:"required,jobmode"`
	LookbackDays int    `mapstructure:"lookback_days" validate:"required,gt=0"`
}

// AWSConfig locates the secret overlaid on the configuration
type AWSConfig struct {
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
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

// BacktestWindow parses the configured start and end dates
func (c *Config) BacktestWindow() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, c.Backtest.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest start_date: %w", err)
	}
	end, err := time.Parse(DateLayout, c.Backtest.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest end_date: %w", err)
	}
	return start, end, nil
}
