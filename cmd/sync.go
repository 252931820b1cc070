package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/backend"
	"github.com/structiq/fieldscan-agent/internal/config"
	"github.com/structiq/fieldscan-agent/internal/database"
	"github.com/structiq/fieldscan-agent/internal/notify"
	"github.com/structiq/fieldscan-agent/internal/store"
	"github.com/structiq/fieldscan-agent/internal/syncer"
	"github.com/structiq/fieldscan-agent/models"
)

var (
	syncWatch    bool
	syncSchedule string
	syncLogDir   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload pending events to the backend",
	Long: `Uploads every event marked ready (plus previously failed ones) to the
inspection backend. Each event is snapshotted to event.json, packed into
a tar.gz archive together with its media, and uploaded against a ticket
issued by the backend. Failed uploads are retried with backoff; events
that still fail stay queued for the next run.

With --watch the command stays running and syncs on a cron schedule:

  "@every 15m"   every 15 minutes (default)
  "0 * * * *"    on the hour
  "@hourly"      same thing`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false,
		"keep running and sync on a schedule")
	syncCmd.Flags().StringVar(&syncSchedule, "schedule", "",
		"cron spec for --watch (overrides config)")
	syncCmd.Flags().StringVar(&syncLogDir, "log-dir", "",
		"directory to write sync logs in watch mode (default ~/.fieldscan/logs)")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nStopping sync...")
		cancel()
	}()

	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.Backend.Enabled || cfg.Backend.APIKey == "" {
		return fmt.Errorf("no backend configured; run 'fieldscan register' first")
	}

	up := &syncer.Uploader{
		DB:           db,
		Store:        store.New(cfg.Storage.EventsDir),
		Backend:      backend.NewWithKey(cfg.Backend.URL, cfg.Backend.APIKey),
		ProjectCode:  cfg.Project.Code,
		MaxAttempts:  cfg.Sync.MaxAttempts,
		PollInterval: time.Duration(cfg.Sync.PollSeconds) * time.Second,
	}

	notifier := notify.NewDispatcher(cfg.Notify)

	if !syncWatch {
		return syncOnce(ctx, db, up, notifier)
	}

	schedule := syncSchedule
	if schedule == "" {
		schedule = cfg.Sync.Schedule
	}
	if schedule == "" {
		schedule = "@every 15m"
	}

	logFilePath, closeLog, err := setupSyncFileLogger(syncLogDir)
	if err != nil {
		return fmt.Errorf("initialising sync logger: %w", err)
	}
	defer closeLog()

	fmt.Printf("fieldscan sync watcher starting\n")
	fmt.Printf("  Schedule : %s\n", schedule)
	fmt.Printf("  Backend  : %s\n", cfg.Backend.URL)
	fmt.Printf("  Logs     : %s\n\n", logFilePath)
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()

	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		if err := syncOnce(ctx, db, up, notifier); err != nil {
			slog.Error("scheduled sync failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	// Run one sync immediately, then hand over to the scheduler.
	if err := syncOnce(ctx, db, up, notifier); err != nil {
		slog.Error("initial sync failed", "error", err)
	}
	c.Start()
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}

func syncOnce(ctx context.Context, db *database.DB, up *syncer.Uploader, notifier *notify.Dispatcher) error {
	if fixed, err := db.ReconcileDefectCounts(ctx); err != nil {
		slog.Warn("defect count reconciliation failed", "error", err)
	} else if fixed > 0 {
		slog.Info("defect counts reconciled", "events", fixed)
	}

	sum, err := up.SyncAll(ctx)
	if err != nil {
		return err
	}
	if sum.Considered == 0 {
		fmt.Println("Nothing to sync.")
		return nil
	}

	fmt.Printf("Sync complete in %s: %d uploaded, %d failed",
		sum.Duration.Round(time.Millisecond), sum.Uploaded, sum.Failed)
	if sum.Skipped > 0 {
		fmt.Printf(", %d skipped", sum.Skipped)
	}
	fmt.Println()
	if sum.Failed > 0 {
		fmt.Println(warnStyle.Render("Some events failed; they stay queued. See 'fieldscan event show <id>'."))
	}

	if notifier != nil && notifier.IsAnyConfigured() {
		notifySyncOutcome(ctx, notifier, up.ProjectCode, sum)
	}
	return nil
}

// notifySyncOutcome reports a finished sync run to the crew channels.
func notifySyncOutcome(ctx context.Context, notifier *notify.Dispatcher, projectCode string, sum *models.SyncSummary) {
	if sum.Failed > 0 {
		notifier.Notify(ctx, notify.Event{
			Type:        notify.EventSyncFailed,
			Title:       fmt.Sprintf("fieldscan sync: %d event(s) failed to upload", sum.Failed),
			Body:        fmt.Sprintf("%d of %d events failed and stay queued for the next run (%d uploaded, %d skipped).", sum.Failed, sum.Considered, sum.Uploaded, sum.Skipped),
			ProjectCode: projectCode,
		})
		return
	}
	if sum.Uploaded > 0 {
		notifier.Notify(ctx, notify.Event{
			Type:        notify.EventSyncCompleted,
			Title:       fmt.Sprintf("fieldscan sync: %d event(s) uploaded", sum.Uploaded),
			Body:        fmt.Sprintf("All %d pending events uploaded in %s.", sum.Uploaded, sum.Duration.Round(time.Millisecond)),
			ProjectCode: projectCode,
		})
	}
}

func setupSyncFileLogger(logDir string) (string, func(), error) {
	if logDir == "" {
		home, err := config.HomeDir()
		if err != nil {
			return "", nil, err
		}
		logDir = filepath.Join(home, "logs")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("sync-%s.log", ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "sync.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, runFile, latestFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}
