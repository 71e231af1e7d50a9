// Package config provides configuration management for the Stock Insight application.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)

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
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
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
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
		return true
	default:
		return false
	}
}

// validateCrossField applies validations that span multiple fields
func validateCrossField(cfg *Config) error {
	if cfg.ML.MinNewSamples > cfg.ML.MinTrainingSamples {
		return fmt.Errorf("ml.min_new_samples (%d) cannot exceed ml.min_training_samples (%d)",
			cfg.ML.MinNewSamples, cfg.ML.MinTrainingSamples)
	}
	if cfg.Backtest.MinShares > cfg.Backtest.LotSize {
		return fmt.Errorf("backtest.min_shares (%d) cannot exceed backtest.lot_size (%d)",
			cfg.Backtest.MinShares, cfg.Backtest.LotSize)
	}
	if cfg.Scheduler.Enabled && cfg.Scheduler.RetrainingCron == "" {
		return fmt.Errorf("scheduler.retraining_cron is required when the scheduler is enabled")
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	msg := "configuration validation failed:"
	for _, fieldErr := range errs {
		msg += fmt.Sprintf("\n  - field %q failed rule %q", fieldErr.Namespace(), fieldErr.Tag())
	}
	return fmt.Errorf("%s", msg)
}
