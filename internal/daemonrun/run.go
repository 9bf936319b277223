package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"panelcast/internal/config"
	"panelcast/internal/daemon"
	"panelcast/internal/deps"
	"panelcast/internal/jobs"
	"panelcast/internal/journal"
	"panelcast/internal/logging"
	"panelcast/internal/notifications"
	"panelcast/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the panelcast daemon and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("panelcast-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	fileLogger, err := logging.New(logging.Options{
		Level:       level,
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to open log file: %v\n", err)
	} else {
		logger = logging.TeeLogger(logger, fileLogger.Handler())
		if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update panelcast.log link: %v\n", err)
		}
	}

	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "panelcast.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	jr, err := journal.Open(cfg.JournalPath())
	if err != nil {
		logger.Error("open journal", logging.Error(err))
		return err
	}
	defer jr.Close()

	svc, err := jobs.NewFromConfig(cfg, jr, notifications.NewService(cfg), logger)
	if err != nil {
		return fmt.Errorf("create job service: %w", err)
	}

	d, err := daemon.New(cfg, svc, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check api_bind and whether another daemon holds the lock"),
		)
		return err
	}

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("panelcast daemon shutting down")
		return d.Close()
	})
	return group.Wait()
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "panelcast.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	statuses := preflight.CheckSystemDeps(cfg)
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, s := range statuses {
		attrs = append(attrs, logging.Bool(dependencyKey(s.Name), s.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(logger, "required dependency unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, "jobs will fail at the stage that needs it"),
		)
	}
	for _, failed := range preflight.Failed(preflight.RunAll(cfg)) {
		logging.WarnWithContext(logger, "directory check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
		)
	}
}

func dependencyKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_") + "_available"
}
