/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reading-plan engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment), then apply command-line flags
  2. Load the curriculum (built-in, or a YAML file)
  3. Open the record store (sqlite, badger or memory)
  4. Create the service, API handler and session sweeper
  5. Start server with graceful shutdown

COMMANDS:
  reading-server                 Run the HTTP server
  reading-server distribution    Print cross-user aggregates as JSON and exit

FLAGS (override environment):
  --port               HTTP server port (PORT, default: 8080)
  --store              sqlite | badger | memory (READING_STORE)
  --db                 SQLite database path (READING_DB_PATH)
                       Use ":memory:" for an in-memory database
  --badger-path        BadgerDB directory (READING_BADGER_PATH)
  --curriculum         Curriculum YAML file (READING_CURRICULUM)
  --chapters-per-day   Daily assignment size (READING_CHAPTERS_PER_DAY)
  --timezone           Calendar-day timezone (READING_TIMEZONE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the session sweeper
  4. Close the store
  5. Exit

EXAMPLES:
  # Run with file database
  ./reading-server --db=./data/reading.db

  # Run with badger
  ./reading-server --store=badger --badger-path=./data/badger

  # Run in memory on a different port
  ./reading-server --store=memory --port=3000

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/badger/badger.go: Store implementations
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/reading-engine/api"
	"github.com/warp/reading-engine/config"
	"github.com/warp/reading-engine/curriculum"
	"github.com/warp/reading-engine/progress"
	memstore "github.com/warp/reading-engine/progress/store"
	"github.com/warp/reading-engine/store/badger"
	"github.com/warp/reading-engine/store/sqlite"
)

var (
	port           int
	storeKind      string
	dbPath         string
	badgerPath     string
	curriculumPath string
	chaptersPerDay int
	timezone       string

	rootCmd = &cobra.Command{
		Use:          "reading-server",
		Short:        "Reading-plan progress ledger and schedule engine",
		SilenceUsage: true,
		RunE:         runServer,
	}

	distributionCmd = &cobra.Command{
		Use:   "distribution",
		Short: "Print cross-user reading aggregates as JSON",
		RunE:  runDistribution,
	}
)

func init() {
	f := rootCmd.PersistentFlags()
	f.IntVar(&port, "port", 8080, "HTTP server port")
	f.StringVar(&storeKind, "store", config.StoreSQLite, "Record store: sqlite, badger or memory")
	f.StringVar(&dbPath, "db", "reading.db", "SQLite database path")
	f.StringVar(&badgerPath, "badger-path", "./data/badger", "BadgerDB directory")
	f.StringVar(&curriculumPath, "curriculum", "", "Curriculum YAML file (default: built-in 66 books)")
	f.IntVar(&chaptersPerDay, "chapters-per-day", progress.DefaultChaptersPerDay, "Chapters in the daily assignment")
	f.StringVar(&timezone, "timezone", "UTC", "Timezone for calendar-day computations")

	distributionCmd.Flags().Int("top", 10, "Number of books to list")
	rootCmd.AddCommand(distributionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment, then lets explicitly set flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port = port
	}
	if f.Changed("store") {
		cfg.StoreKind = storeKind
	}
	if f.Changed("db") {
		cfg.DBPath = dbPath
	}
	if f.Changed("badger-path") {
		cfg.BadgerPath = badgerPath
	}
	if f.Changed("curriculum") {
		cfg.CurriculumPath = curriculumPath
	}
	if f.Changed("chapters-per-day") {
		cfg.ChaptersPerDay = chaptersPerDay
	}
	if f.Changed("timezone") {
		cfg.Timezone = timezone
	}
	return cfg, cfg.Validate()
}

func loadCurriculum(path string) (*curriculum.Curriculum, error) {
	if path == "" {
		return curriculum.Standard(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open curriculum: %w", err)
	}
	defer f.Close()
	return curriculum.LoadYAML(f)
}

// openStore returns the configured store and its closer.
func openStore(cfg *config.Config, logger *slog.Logger) (progress.Store, io.Closer, error) {
	switch cfg.StoreKind {
	case config.StoreBadger:
		s, err := badger.Open(badger.Config{Path: cfg.BadgerPath, SyncWrites: true, Logger: logger.With("component", "badger")})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StoreMemory:
		m := memstore.NewMemory()
		return m, m, nil
	default:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}

// setup builds the service from configuration.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, *progress.Service, io.Closer, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	c, err := loadCurriculum(cfg.CurriculumPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store, closer, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize %s store: %w", cfg.StoreKind, err)
	}

	svc := progress.NewService(c, store, progress.Options{
		ChaptersPerDay: cfg.ChaptersPerDay,
		BatchSize:      cfg.BatchSize,
		Location:       loc,
		Logger:         logger,
	})
	return cfg, logger, svc, closer, nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, logger, svc, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	sweeper := api.NewSessionSweeper(svc, logger)
	sweeper.CheckInterval = cfg.SweepInterval
	sweeper.MaxIdle = cfg.SessionIdle
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", server.Addr,
			"store", cfg.StoreKind,
			"chapters", svc.Curriculum().Len(),
			"chapters_per_day", svc.ChaptersPerDay())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func runDistribution(cmd *cobra.Command, _ []string) error {
	_, _, svc, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	top, _ := cmd.Flags().GetInt("top")
	d, err := svc.Distribution(cmd.Context(), progress.DistributionOptions{})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"users":     d.Users,
		"top_books": d.TopBooks(top),
		"weekdays":  d.Weekdays,
		"buckets":   d.Buckets,
	})
}
