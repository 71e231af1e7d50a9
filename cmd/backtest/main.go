// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/backtest"
	"github.com/yourusername/stock-insight/internal/config"
	"github.com/yourusername/stock-insight/internal/datasource"
	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/strategy"
)

func main() {
	var (
		configPath   = flag.String("config", "config/config.yaml", "Path to config file")
		stockID      = flag.String("stock", "2330", "Stock ID to backtest")
		strategyName = flag.String("strategy", "ma_cross", "Strategy name: ma_cross, rsi_reversal")
		startDate    = flag.String("start-date", "", "Start date (YYYY-MM-DD)")
		endDate      = flag.String("end-date", "", "End date (YYYY-MM-DD), defaults to today")
		output       = flag.String("output", "", "Override output path for results")
		tail         = flag.Int("tail", 0, "Keep only the last N trades and equity points in the report")
	)
	flag.Parse()

	log := newLogger()
	ctx := context.Background()

	cfg := loadConfigWithSecrets(*configPath, log)
	start, end := resolveDates(*startDate, *endDate, log)
	strat := resolveStrategy(*strategyName)

	outputPath := cfg.Backtest.OutputPath
	if *output != "" {
		outputPath = *output
	}

	bars := fetchBars(ctx, cfg, *stockID, start, end, log)

	log.WithFields(logrus.Fields{
		"stock":    *stockID,
		"strategy": strat.Name(),
		"bars":     len(bars),
	}).Info("Starting backtest")

	engine := backtest.NewEngine(backtest.FromAppConfig(cfg.Backtest), log)
	result, err := engine.Run(ctx, *stockID, bars, strat)
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	if err := backtest.ExportToJSON(result.Trimmed(*tail), outputPath); err != nil {
		log.Fatalf("Failed to export results: %v", err)
	}
	log.Info(backtest.ConsoleReport(result))
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	return log
}

func loadConfigWithSecrets(path string, log *logrus.Logger) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func resolveDates(startOverride, endOverride string, log *logrus.Logger) (time.Time, time.Time) {
	end := time.Now()
	if endOverride != "" {
		parsed, err := time.Parse("2006-01-02", endOverride)
		if err != nil {
			log.Fatalf("Invalid end date: %v", err)
		}
		end = parsed
	}
	start := end.AddDate(-1, 0, 0)
	if startOverride != "" {
		parsed, err := time.Parse("2006-01-02", startOverride)
		if err != nil {
			log.Fatalf("Invalid start date: %v", err)
		}
		start = parsed
	}
	if !start.Before(end) {
		log.Fatalf("Start date %s must be before end date %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end
}

func resolveStrategy(name string) strategy.Strategy {
	constructors := map[string]func() strategy.Strategy{
		"ma_cross":     func() strategy.Strategy { return strategy.NewMACross(5, 20) },
		"rsi_reversal": func() strategy.Strategy { return strategy.NewRSIReversal(14, 30, 70) },
	}
	if build, ok := constructors[name]; ok {
		return build()
	}
	return strategy.NewMACross(5, 20)
}

// fetchBars pulls daily bars month by month and keeps those inside the window.
func fetchBars(ctx context.Context, cfg *config.Config, stockID string, start, end time.Time, log *logrus.Logger) []models.DailyBar {
	cache := datasource.NewBarCache(
		time.Duration(cfg.Providers.CacheTTLOpenMinutes)*time.Minute,
		time.Duration(cfg.Providers.CacheTTLClosedMinutes)*time.Minute,
		time.Now,
	)
	source := datasource.NewTWSESource(cfg.Providers.TWSE, cache, log)

	var bars []models.DailyBar
	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(end) {
		monthBars, err := source.FetchDailyBars(ctx, stockID, month)
		if err != nil {
			log.Fatalf("Failed to fetch bars for %s: %v", month.Format("2006-01"), err)
		}
		for _, bar := range monthBars {
			if bar.Date.Before(start) || bar.Date.After(end) {
				continue
			}
			bars = append(bars, bar)
		}
		month = month.AddDate(0, 1, 0)
	}
	return bars
}
