// Command advisories-analysis loads a local checkout of the GitHub Advisory
// Database into a SQLite file for analysis.
//
// Subcommands:
//
//	import     rebuild the database from the advisory tree (default)
//	migrate    create or upgrade the schema of an existing database and exit
//	stats      print row counts of an existing database
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	// Sets GOMEMLIMIT from the cgroup memory limit so the GC runs before the
	// OOM killer does in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/hmarr/advisories-analysis/internal/config"
	"github.com/hmarr/advisories-analysis/internal/feed"
	"github.com/hmarr/advisories-analysis/internal/ingest"
	"github.com/hmarr/advisories-analysis/internal/metrics"
	"github.com/hmarr/advisories-analysis/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "advisories-analysis",
		Short: "Load the GitHub Advisory Database into SQLite",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          f.runImport,
	}
	f.register(root)

	root.AddCommand(
		importCmd(&f),
		migrateCmd(&f),
		statsCmd(&f),
	)
	return root
}

// ── flags ─────────────────────────────────────────────────────────────────────

// flags override the matching environment settings when set explicitly.
type flags struct {
	dataPath    string
	dbPath      string
	batchSize   int
	workers     int
	rowFallback bool
	noProgress  bool
	metricsFile string
}

func (f *flags) register(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&f.dataPath, "data", "", "advisory database checkout (env ADVISORY_DATA_PATH)")
	pf.StringVar(&f.dbPath, "db", "", "output SQLite file (env ADVISORY_DB_PATH)")
	pf.IntVar(&f.batchSize, "batch-size", 0, "advisories per transaction (env BATCH_SIZE)")
	pf.IntVar(&f.workers, "workers", 0, "parallel parsers, 0 = GOMAXPROCS (env PARSE_WORKERS)")
	pf.BoolVar(&f.rowFallback, "row-fallback", false, "retry a failed batch one advisory at a time (env BATCH_ROW_FALLBACK)")
	pf.BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar (env SHOW_PROGRESS=false)")
	pf.StringVar(&f.metricsFile, "metrics-textfile", "", "write Prometheus metrics here on exit (env METRICS_TEXTFILE)")
}

// load reads configuration from the environment, applies explicitly set
// flags, and installs the default logger.
func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	set := cmd.Flags().Changed
	if set("data") {
		cfg.DataPath = f.dataPath
	}
	if set("db") {
		cfg.DBPath = f.dbPath
	}
	if set("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	if set("workers") {
		cfg.ParseWorkers = f.workers
	}
	if set("row-fallback") {
		cfg.RowFallback = f.rowFallback
	}
	if set("no-progress") {
		cfg.ShowProgress = !f.noProgress
	}
	if set("metrics-textfile") {
		cfg.MetricsTextfile = f.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(newLogger(cfg))
	return cfg, nil
}

// ── import ────────────────────────────────────────────────────────────────────

func importCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Rebuild the SQLite database from the advisory tree",
		RunE:  f.runImport,
	}
}

func (f *flags) runImport(cmd *cobra.Command, _ []string) error {
	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	log := slog.Default().With("run_id", uuid.NewString())
	log.Info("import started",
		"data_path", cfg.DataPath,
		"db_path", cfg.DBPath,
		"batch_size", cfg.BatchSize,
		"row_fallback", cfg.RowFallback,
	)

	if err := resetStore(log, cfg.DBPath); err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.CreateSchema(ctx); err != nil {
		return err
	}

	paths, err := feed.Discover(ctx, cfg.DataPath)
	if err != nil {
		return err
	}
	log.Info("advisory files discovered", "files", len(paths))

	recorder := metrics.New()
	var progress *progressObserver
	if cfg.ShowProgress {
		progress = newProgressObserver(len(paths))
	}

	p := ingest.New(st, ingest.Options{
		BatchSize:   cfg.BatchSize,
		Workers:     cfg.ParseWorkers,
		RowFallback: cfg.RowFallback,
		Observer:    ingest.Observers(recorder, progress.observer()),
		Logger:      log,
	})
	stats, runErr := p.Run(ctx, paths)
	progress.finish()

	if runErr == nil {
		recorder.MarkSuccess()
	}
	if cfg.MetricsTextfile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn("write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	if runErr != nil {
		log.Warn("import interrupted", "stats", stats)
		return fmt.Errorf("import: %w", runErr)
	}
	log.Info("import complete", "stats", stats)
	return nil
}

// resetStore removes a database left by a previous run so every import starts
// from an empty store.
func resetStore(log *slog.Logger, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat database: %w", err)
	}

	log.Info("database already exists, overwriting", "path", path)
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// ── migrate ───────────────────────────────────────────────────────────────────

func migrateCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema of the database and exit",
		RunE:  f.runMigrate,
	}
}

func (f *flags) runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	slog.Info("running migrations", "db_path", cfg.DBPath)
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.CreateSchema(ctx); err != nil {
		return err
	}
	version, dirty, _, err := st.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "version", version, "dirty", dirty)
	return nil
}

// ── stats ─────────────────────────────────────────────────────────────────────

func statsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts of an existing database",
		RunE:  f.runStats,
	}
}

func (f *flags) runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// Opening a missing file would create an empty database.
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	return printStats(ctx, cmd.OutOrStdout(), st)
}

// ── helpers ───────────────────────────────────────────────────────────────────

// newLogger creates a slog.Logger based on the configured log level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if cfg.LogFormat == "text" || cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
