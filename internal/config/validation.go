// Package config provides configuration management for the QuantLab backtester.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails for empty tags or nil funcs
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("datasource", validateDataSource)
	_ = v.RegisterValidation("jobmode", validateJobMode)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateDataSource(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "csv", "http", "postgres":
		return true
	default:
		return false
	}
}

func validateJobMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "run", "optimize", "walk_forward":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	start, end, err := cfg.BacktestWindow()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("backtest start_date must be before end_date")
	}

	switch cfg.DataSource.Type {
	case "csv":
		if cfg.DataSource.CSVDir == "" {
			return fmt.Errorf("data_source.csv_dir is required for the csv data source")
		}
	case "http":
		if cfg.DataSource.HTTP.BaseURL == "" {
			return fmt.Errorf("data_source.http.base_url is required for the http data source")
		}
	case "postgres":
		if !cfg.Database.Enabled {
			return fmt.Errorf("the postgres data source requires database.enabled")
		}
	}

	if cfg.Backtest.PersistResults && !cfg.Database.Enabled {
		return fmt.Errorf("backtest.persist_results requires database.enabled")
	}

	if err := validateCrossoverPeriods(cfg.Strategy.Parameters); err != nil {
		return err
	}

	if cfg.IsProduction() && cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections && cfg.Database.MaxConnections > 0 {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	if cfg.WalkForward.Optimize && len(cfg.Optimizer.ParameterRanges) == 0 {
		return fmt.Errorf("walk_forward.optimize requires optimizer.parameter_ranges")
	}

	return nil
}

// validateCrossoverPeriods checks short < long when both periods are configured.
// Keys are matched case-insensitively because viper folds map keys.
func validateCrossoverPeriods(params map[string]interface{}) error {
	short, okShort := lookupFold(params, "shortPeriod")
	long, okLong := lookupFold(params, "longPeriod")
	if !okShort || !okLong {
		return nil
	}
	s, err := cast.ToFloat64E(short)
	if err != nil {
		return fmt.Errorf("strategy.parameters.shortPeriod: %w", err)
	}
	l, err := cast.ToFloat64E(long)
	if err != nil {
		return fmt.Errorf("strategy.parameters.longPeriod: %w", err)
	}
	if s >= l {
		return fmt.Errorf("strategy shortPeriod (%v) must be less than longPeriod (%v)", s, l)
	}
	return nil
}

func lookupFold(params map[string]interface{}, key string) (interface{}, bool) {
	for k, v := range params {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte", "gtefield":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "datasource":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: csv, http, postgres\n", field)
		case "jobmode":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: run, optimize, walk_forward\n", field)
		case "datetime":
			errMsg += fmt.Sprintf("- Field '%s' must be a YYYY-MM-DD date, got '%v'\n", field, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}
