// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/quantlab/internal/backtest"
	"github.com/yourusername/quantlab/internal/config"
	"github.com/yourusername/quantlab/internal/database"
	"github.com/yourusername/quantlab/internal/datasource"
	"github.com/yourusername/quantlab/internal/health"
	"github.com/yourusername/quantlab/internal/logger"
	"github.com/yourusername/quantlab/internal/metrics"
	"github.com/yourusername/quantlab/internal/repository"
	"github.com/yourusername/quantlab/internal/scheduler"
	"github.com/yourusername/quantlab/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	startDate  string
	endDate    string
	outputDir  string
	htmlReport string

	appLogger *logrus.Logger
	cfg       *config.Config
	db        *database.DB
	repos     *repository.Repositories
	provider  datasource.Provider
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&startDate, "start-date", "", "Override start date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&endDate, "end-date", "", "Override end date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Directory for result artifacts")
	evaluateCmd.Flags().StringVar(&htmlReport, "html", "", "Write an HTML summary to this path")

	rootCmd.AddCommand(runCmd, optimizeCmd, walkForwardCmd, evaluateCmd, ingestCmd, scheduleCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:           "backtest",
	Short:         "Backtest trading strategies against historical price data",
	Long:          `Replays historical bars through a strategy, sweeps its parameters, validates it out of sample and persists the results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		if err := loadConfig(cmd.Context()); err != nil {
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

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single historical backtest",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBacktestService()
		if err != nil {
			return err
		}
		start, end := svc.Window()
		result, err := svc.Run(cmd.Context(), start, end)
		if err != nil {
			return err
		}
		fmt.Print(backtest.GenerateConsoleReport(result))
		return writeArtifacts(result)
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid search the strategy's parameter ranges",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBacktestService()
		if err != nil {
			return err
		}
		start, end := svc.Window()
		results, err := svc.Optimize(cmd.Context(), start, end)
		if err != nil {
			return err
		}
		metric := cfg.Optimizer.Metric
		if metric == "" {
			metric = backtest.MetricSharpeRatio
		}
		fmt.Print(backtest.GenerateOptimizationReport(results, metric, cfg.Optimizer.TopK))
		if len(results) > 0 {
			return writeArtifacts(results[0].Result)
		}
		return nil
	},
}

var walkForwardCmd = &cobra.Command{
	Use:   "walk-forward",
	Short: "Run rolling train/test validation",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBacktestService()
		if err != nil {
			return err
		}
		start, end := svc.Window()
		result, err := svc.WalkForward(cmd.Context(), start, end)
		if err != nil {
			return err
		}
		fmt.Print(backtest.GenerateWalkForwardReport(result))
		if outputDir != "" {
			return backtest.ExportToJSON(result, outputDir+"/walk_forward.json")
		}
		return nil
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Combine historical, walk-forward and Monte Carlo results into a recommendation",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBacktestService()
		if err != nil {
			return err
		}
		start, end := svc.Window()
		aggregated, result, err := svc.Evaluate(cmd.Context(), start, end)
		if err != nil {
			return err
		}
		fmt.Print(backtest.GenerateConsoleReport(result))
		fmt.Print(backtest.GenerateSummaryReport(*aggregated))
		if htmlReport != "" {
			if err := backtest.GenerateHTMLReport(*aggregated, htmlReport); err != nil {
				return err
			}
		}
		return writeArtifacts(result)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [symbol...]",
	Short: "Load bars from the configured source into the price_bars table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if repos == nil {
			return fmt.Errorf("ingest requires database.enabled")
		}
		start, end, err := window()
		if err != nil {
			return err
		}
		symbols := args
		if len(symbols) == 0 {
			symbols = []string{cfg.Backtest.Symbol}
		}

		ingestion := service.NewIngestionService(
			provider,
			repos.PriceBars,
			service.NewDataValidator(appLogger),
			service.NewDataNormalizer(appLogger, nil),
			appLogger,
			cfg.DataSource.Interval,
			0,
		)
		for _, symbol := range symbols {
			summary, err := ingestion.IngestHistoricalData(cmd.Context(), symbol, start, end)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", symbol, err)
			}
			fmt.Printf("%s: fetched=%d stored=%d duplicates=%d invalid=%d errors=%d (%v)\n",
				symbol, summary.TotalBars, summary.StoredBars, summary.Duplicates,
				summary.ValidationErrors, summary.Errors, summary.Duration)
		}
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run configured jobs on their cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBacktestService()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		healthCfg := health.Config{
			ServiceName: cfg.App.Name,
			Version:     Version,
			Commit:      GitCommit,
			MetricsPath: cfg.Metrics.Path,
			Logger:      appLogger,
		}
		if cfg.Metrics.Port > 0 {
			healthCfg.Port = strconv.Itoa(cfg.Metrics.Port)
		}
		if db != nil {
			healthCfg.DB = db
		}
		healthServer := health.NewServer(healthCfg)
		if err := healthServer.Start(ctx); err != nil {
			return err
		}

		sched := scheduler.NewScheduler(svc, appLogger)
		if err := sched.ScheduleJobs(cfg.Schedule.Jobs); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		healthServer.AddCheck("scheduler", func(ctx context.Context) error {
			if !sched.IsRunning() {
				return errors.New("scheduler stopped")
			}
			return nil
		})
		healthServer.SetReady(true)
		appLogger.WithField("next_run", sched.GetNextRun()).Info("Scheduler running")

		<-ctx.Done()
		healthServer.SetReady(false)

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return sched.Stop(stopCtx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("backtest %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	loaded, err := config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if err := config.LoadSecretsFromAWS(ctx, loaded); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if startDate != "" {
		loaded.Backtest.StartDate = startDate
	}
	if endDate != "" {
		loaded.Backtest.EndDate = endDate
	}
	if outputDir != "" {
		loaded.Backtest.OutputPath = outputDir
	}
	if err := config.Validate(loaded); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = loaded
	appLogger = logger.NewLoggerForEnvironment(cfg.App.LogLevel, cfg.App.Environment)
	return nil
}

func setupDependencies(ctx context.Context) error {
	metrics.InitRegistry()

	factory := datasource.NewFactory(cfg.DataSource, appLogger)
	if cfg.Database.Enabled {
		var err error
		db, err = database.Initialize(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		repos, err = repository.NewRepositories(db)
		if err != nil {
			return err
		}
		factory = factory.WithBarStore(repos.PriceBars)
	}

	var err error
	provider, err = factory.NewProvider()
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}

	appLogger.WithFields(logrus.Fields{
		"source":   cfg.DataSource.Type,
		"symbol":   cfg.Backtest.Symbol,
		"strategy": cfg.Strategy.Type,
		"database": cfg.Database.Enabled,
	}).Info("Dependencies initialized")
	return nil
}

func newBacktestService() (*service.BacktestService, error) {
	var results repository.BacktestResultRepository
	if repos != nil {
		results = repos.BacktestResults
	}
	return service.NewBacktestService(cfg, provider, results, appLogger)
}

func window() (time.Time, time.Time, error) {
	return cfg.BacktestWindow()
}

func writeArtifacts(result *backtest.Result) error {
	if cfg.Backtest.OutputPath == "" || result == nil {
		return nil
	}
	if err := backtest.WriteRunArtifacts(result, cfg.Backtest.OutputPath); err != nil {
		return fmt.Errorf("failed to write artifacts: %w", err)
	}
	appLogger.WithField("path", cfg.Backtest.OutputPath).Info("Wrote backtest artifacts")
	return nil
}
