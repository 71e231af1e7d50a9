// Package main provides the model training and lifecycle CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/stock-insight/internal/config"
	"github.com/yourusername/stock-insight/internal/database"
	"github.com/yourusername/stock-insight/internal/datasource"
	"github.com/yourusername/stock-insight/internal/features"
	"github.com/yourusername/stock-insight/internal/health"
	"github.com/yourusername/stock-insight/internal/logger"
	"github.com/yourusername/stock-insight/internal/metrics"
	"github.com/yourusername/stock-insight/internal/ml"
	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/repository"
	"github.com/yourusername/stock-insight/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	appLogger  *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	repos      *repository.Repositories
	samples    *ml.SampleStore
	versions   *ml.VersionStore
	manager    *ml.Manager
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	fullCmd.Flags().Int("min-samples", 0, "Minimum qualifying samples (0 uses config)")
	fullCmd.Flags().String("sources", "", "Comma-separated sample sources (empty means all)")
	incrementalCmd.Flags().String("source", "", "Restrict new samples to one source")
	incrementalCmd.Flags().String("base-version", "", "Base version to continue from (empty uses current)")
	incrementalCmd.Flags().Int("min-new-samples", 0, "Minimum new samples since the base (0 uses config)")
	incrementalCmd.Flags().Float64("replay-ratio", 0, "Replayed prior samples per new sample (0 uses config)")
	hybridCmd.Flags().Int("min-samples", 0, "Minimum qualifying samples (0 uses config)")
	versionsCmd.Flags().Int("limit", 20, "Maximum versions to list")
	ingestCmd.Flags().String("stock", "", "Stock ID to ingest (required)")
	ingestCmd.Flags().Int("months", 12, "Months of history to pull")
	ingestOutcomesCmd.Flags().Int("since-days", 30, "How far back to pull tracked outcomes")
	ingestOutcomesCmd.Flags().Int("limit", 10000, "Maximum outcomes to pull")

	rootCmd.AddCommand(fullCmd, incrementalCmd, hybridCmd, versionsCmd, getCmd,
		activateCmd, deleteCmd, compareCmd, statsCmd, ingestCmd, ingestOutcomesCmd, serveCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Manage model training and versions",
	Long:  `Trains prediction models, manages the version catalog and runs the retraining service.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}
	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	appLogger = logger.NewLogger(cfg.App.LogLevel)

	var err error
	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	extractor := features.NewExtractor(appLogger)
	samples = ml.NewSampleStore(repos.Sample, extractor, appLogger)
	versions = ml.NewVersionStore(repos.Version, cfg.ML.ArtifactDir, appLogger)
	trainer := ml.NewTrainer(samples, versions, repos.History, cfg.ML, appLogger)
	manager = ml.NewManager(trainer, samples, versions, repos.History, repos.Outcome, appLogger)
	return nil
}

var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Train a fresh model over all qualifying samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		minSamples, _ := cmd.Flags().GetInt("min-samples")
		sourceList, _ := cmd.Flags().GetString("sources")
		result, err := manager.TrainFull(cmd.Context(), minSamples, parseSources(sourceList))
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var incrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Continue the current model on newly arrived samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		baseVersion, _ := cmd.Flags().GetString("base-version")
		minNew, _ := cmd.Flags().GetInt("min-new-samples")
		replayRatio, _ := cmd.Flags().GetFloat64("replay-ratio")
		result, err := manager.TrainIncremental(cmd.Context(), models.SampleSource(source), replayRatio, baseVersion, minNew)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var hybridCmd = &cobra.Command{
	Use:   "hybrid",
	Short: "Train fresh on historical plus performance samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		minSamples, _ := cmd.Flags().GetInt("min-samples")
		result, err := manager.TrainHybrid(cmd.Context(), minSamples)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List model versions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		list, err := manager.ListVersions(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <version>",
	Short: "Show one model version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := manager.GetVersion(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(version)
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate <version>",
	Short: "Switch serving to the given version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := manager.ActivateVersion(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Activated %s\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <version>",
	Short: "Delete a non-current version and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := manager.DeleteVersion(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <version-a> <version-b>",
	Short: "Show metric deltas of version B relative to version A",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		comparison, err := manager.CompareVersions(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(comparison)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sample population, current version and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := manager.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Generate historical training samples from daily bars",
	RunE: func(cmd *cobra.Command, args []string) error {
		stockID, _ := cmd.Flags().GetString("stock")
		months, _ := cmd.Flags().GetInt("months")
		if stockID == "" {
			return fmt.Errorf("--stock is required")
		}
		return runIngest(cmd.Context(), stockID, months)
	},
}

var ingestOutcomesCmd = &cobra.Command{
	Use:   "ingest-outcomes",
	Short: "Convert tracked recommendation outcomes into performance samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceDays, _ := cmd.Flags().GetInt("since-days")
		limit, _ := cmd.Flags().GetInt("limit")
		since := time.Now().UTC().AddDate(0, 0, -sinceDays)
		result, err := manager.IngestOutcomes(cmd.Context(), since, limit)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the retraining scheduler with health and metrics endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("train %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func runIngest(ctx context.Context, stockID string, months int) error {
	cache := datasource.NewBarCache(
		time.Duration(cfg.Providers.CacheTTLOpenMinutes)*time.Minute,
		time.Duration(cfg.Providers.CacheTTLClosedMinutes)*time.Minute,
		time.Now,
	)
	source := datasource.NewTWSESource(cfg.Providers.TWSE, cache, appLogger)

	var bars []models.DailyBar
	month := time.Now().AddDate(0, -months, 0)
	month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(time.Now()) {
		monthBars, err := source.FetchDailyBars(ctx, stockID, month)
		if err != nil {
			return fmt.Errorf("failed to fetch bars for %s: %w", month.Format("2006-01"), err)
		}
		bars = append(bars, monthBars...)
		month = month.AddDate(0, 1, 0)
	}

	generated, err := samples.GenerateFromHistory(stockID, bars, cfg.ML.PredictDays)
	if err != nil {
		return err
	}
	result, err := samples.Save(ctx, generated)
	if err != nil {
		return err
	}
	appLogger.WithFields(logrus.Fields{
		"stock":   stockID,
		"bars":    len(bars),
		"saved":   result.Saved,
		"skipped": result.Skipped,
	}).Info("Historical samples ingested")
	return nil
}

func runServe(ctx context.Context) error {
	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Logger:      appLogger,
		DB:          db,
		Model:       versions,
	})
	if err := healthServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics, appLogger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				appLogger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	sched := scheduler.NewScheduler(manager, appLogger)
	if cfg.Scheduler.Enabled {
		source := models.SampleSource(cfg.Scheduler.DataSource)
		if err := sched.ScheduleRetraining(cfg.Scheduler.RetrainingCron, source); err != nil {
			return fmt.Errorf("failed to schedule retraining: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	healthServer.SetReady(true)
	appLogger.WithFields(logrus.Fields{
		"scheduler": cfg.Scheduler.Enabled,
		"metrics":   cfg.Metrics.Enabled,
	}).Info("Training service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down training service")
	healthServer.SetReady(false)
	if err := sched.Stop(); err != nil {
		appLogger.WithError(err).Error("Scheduler shutdown failed")
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.WithError(err).Error("Metrics server shutdown failed")
		}
	}
	return healthServer.Shutdown()
}

func parseSources(list string) []models.SampleSource {
	if list == "" {
		return nil
	}
	var sources []models.SampleSource
	for _, part := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sources = append(sources, models.SampleSource(trimmed))
		}
	}
	return sources
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
