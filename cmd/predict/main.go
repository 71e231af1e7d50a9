// Package main provides the prediction CLI: fetch recent bars for a stock and
// score it with the current model, falling back to the rule engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/config"
	"github.com/yourusername/stock-insight/internal/database"
	"github.com/yourusername/stock-insight/internal/datasource"
	"github.com/yourusername/stock-insight/internal/features"
	"github.com/yourusername/stock-insight/internal/logger"
	"github.com/yourusername/stock-insight/internal/ml"
	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/repository"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to config file")
		stockID    = flag.String("stock", "", "Stock ID to score (required)")
		months     = flag.Int("months", 6, "Months of price history to pull")
		signals    = flag.String("signals", "", "Score raw signals instead, e.g. rsi=25,volume_ratio_5=2.1")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if *stockID == "" {
		log.Fatal("-stock is required")
	}

	cfg := loadConfigWithSecrets(*configPath, log)
	appLogger := logger.NewLogger(cfg.App.LogLevel)
	ctx := context.Background()

	// Raw-signal scoring is a pure rule-engine path, no database or model
	// artifacts involved.
	if *signals != "" {
		parsed, err := parseSignals(*signals)
		if err != nil {
			log.Fatalf("Invalid signals: %v", err)
		}
		extractor := features.NewExtractor(appLogger)
		predictor := ml.NewPredictor(nil, extractor, nil, appLogger)
		printResult(predictor.PredictFromSignals(*stockID, parsed), log)
		return
	}

	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repos, err := repository.NewRepositories(db)
	if err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	extractor := features.NewExtractor(appLogger)
	versionStore := ml.NewVersionStore(repos.Version, cfg.ML.ArtifactDir, appLogger)
	cache := ml.NewPredictionCache(time.Duration(cfg.ML.CacheTTLSeconds)*time.Second, cfg.ML.CacheMaxSize)
	predictor := ml.NewPredictor(versionStore, extractor, cache, appLogger)

	bars := fetchBars(ctx, cfg, *stockID, *months, appLogger)
	if len(bars) == 0 {
		log.Fatalf("No price history for %s", *stockID)
	}

	latest := bars[len(bars)-1]
	obs := &models.StockObservation{
		StockID: *stockID,
		Date:    latest.Date,
		Bar:     latest,
	}

	result, err := predictor.Predict(ctx, *stockID, nil, obs, bars[:len(bars)-1])
	if err != nil {
		log.Fatalf("Prediction failed: %v", err)
	}
	printResult(result, log)
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

func fetchBars(ctx context.Context, cfg *config.Config, stockID string, months int, log *logrus.Logger) []models.DailyBar {
	barCache := datasource.NewBarCache(
		time.Duration(cfg.Providers.CacheTTLOpenMinutes)*time.Minute,
		time.Duration(cfg.Providers.CacheTTLClosedMinutes)*time.Minute,
		time.Now,
	)
	source := datasource.NewTWSESource(cfg.Providers.TWSE, barCache, log)

	var bars []models.DailyBar
	month := time.Now().AddDate(0, -months, 0)
	month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(time.Now()) {
		monthBars, err := source.FetchDailyBars(ctx, stockID, month)
		if err != nil {
			log.Fatalf("Failed to fetch bars for %s: %v", month.Format("2006-01"), err)
		}
		bars = append(bars, monthBars...)
		month = month.AddDate(0, 1, 0)
	}
	return bars
}

func parseSignals(raw string) (map[string]float64, error) {
	signals := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}
		value, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", parts[0], err)
		}
		signals[parts[0]] = value
	}
	return signals, nil
}

func printResult(result *models.PredictionResult, log *logrus.Logger) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal result: %v", err)
	}
	fmt.Println(string(data))
}
