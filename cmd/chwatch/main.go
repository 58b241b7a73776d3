// Command chwatch watches files and URLs for content changes, appends
// line-level diffs to a change log, and forwards notifications.
//
// Usage:
//
//	chwatch -config chwatch.yaml            # full daemon config
//	chwatch -targets targets.txt            # newline-delimited target list
//	chwatch -file /etc/hosts -interval 30s  # watch a single file
//	chwatch -url https://example.com -jjs   # track .js references
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/chwatch/api"
	"github.com/hazyhaar/chwatch/changelog"
	"github.com/hazyhaar/chwatch/config"
	"github.com/hazyhaar/chwatch/dbopen"
	"github.com/hazyhaar/chwatch/notify"
	"github.com/hazyhaar/chwatch/poll"
	"github.com/hazyhaar/chwatch/snapshot"
	"github.com/hazyhaar/chwatch/state"
	"github.com/hazyhaar/chwatch/target"
)

func main() {
	configPath := flag.String("config", "", "path to chwatch.yaml config file")
	targetsPath := flag.String("targets", "", "newline-delimited list of files/URLs to monitor")
	singleFile := flag.String("file", "", "monitor a single file")
	singleURL := flag.String("url", "", "monitor a single URL")
	interval := flag.Duration("interval", 60*time.Second, "polling interval")
	logPath := flag.String("log", "changes.log", "append-only change log path")
	statePath := flag.String("state", "", "SQLite baseline store path (empty disables persistence)")
	reportDir := flag.String("report-dir", ".", "directory for transient report artifacts")
	jsRefs := flag.Bool("jjs", false, "track JavaScript references instead of raw line diffs")
	apiAddr := flag.String("api", "", "status endpoint listen address (e.g. :8086)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := buildConfig(*configPath, *targetsPath, *singleFile, *singleURL,
		*interval, *logPath, *statePath, *reportDir, *jsRefs, *apiAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("chwatch: fatal", "error", err)
		os.Exit(1)
	}
}

// buildConfig assembles the daemon configuration from the YAML file or
// from the direct CLI flags. Configuration errors are fatal before any
// poller starts.
func buildConfig(configPath, targetsPath, singleFile, singleURL string,
	interval time.Duration, logPath, statePath, reportDir string,
	jsRefs bool, apiAddr string) (*config.Config, error) {

	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &config.Config{
			Interval:  interval,
			LogPath:   logPath,
			StatePath: statePath,
			ReportDir: reportDir,
			JSRefs:    jsRefs,
			APIAddr:   apiAddr,
		}
		if targetsPath != "" {
			targets, err := target.LoadList(targetsPath, interval)
			if err != nil {
				return nil, err
			}
			for _, t := range targets {
				cfg.Targets = append(cfg.Targets, config.TargetConfig{
					Identifier: t.Identifier, Interval: t.Interval,
				})
			}
		}
		if singleFile != "" {
			cfg.Targets = append(cfg.Targets, config.TargetConfig{Identifier: singleFile})
		}
		if singleURL != "" {
			cfg.Targets = append(cfg.Targets, config.TargetConfig{Identifier: singleURL})
		}
		cfg.ApplyDefaults()
	}

	if cfg.Telegram == nil {
		cfg.Telegram = config.TelegramFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	// Notifiers.
	var notifiers []notify.Notifier
	if cfg.Telegram != nil {
		tg, err := notify.NewTelegram(*cfg.Telegram)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, tg)
	}
	for _, url := range cfg.Webhooks {
		notifiers = append(notifiers, notify.NewWebhook(url, notify.WithWebhookLogger(logger)))
	}
	var notifier notify.Notifier
	if len(notifiers) > 0 {
		notifier = notify.NewRouter(logger, notifiers...)
	}

	// Change log and report delivery.
	log := changelog.NewLog(cfg.LogPath)
	var reporter *changelog.Reporter
	if notifier != nil {
		reporter = changelog.NewReporter(cfg.ReportDir, notifier, logger)
	}

	// Baseline store.
	var store *state.Store
	if cfg.StatePath != "" {
		db, err := dbopen.Open(cfg.StatePath, dbopen.WithMkdirAll(), dbopen.WithSchema(state.Schema))
		if err != nil {
			return fmt.Errorf("open state db: %w", err)
		}
		defer db.Close()
		store = state.NewStore(db)
		if err := store.Cleanup(ctx, 30*24*time.Hour); err != nil {
			logger.Warn("chwatch: check-log cleanup failed", "error", err)
		}
	}

	// One poller per target.
	fileFetcher := snapshot.NewFileFetcher(logger)
	urlFetcher := snapshot.NewURLFetcher(snapshot.URLFetcherConfig{}, logger)

	mode := poll.LineDiff
	if cfg.JSRefs {
		mode = poll.JSRefs
	}

	pollers := make([]*poll.Poller, 0, len(cfg.Targets))
	for _, tc := range cfg.Targets {
		t := target.New(tc.Identifier, tc.Interval)
		pollers = append(pollers, poll.New(poll.Config{
			Target:   t,
			Fetcher:  snapshot.ForTarget(t, fileFetcher, urlFetcher),
			Mode:     mode,
			Log:      log,
			Reporter: reporter,
			Notifier: notifier,
			Store:    store,
			Logger:   logger,
		}))
	}

	sched := poll.NewScheduler(logger, pollers...)

	// Optional status endpoint.
	if cfg.APIAddr != "" {
		srv := &http.Server{Addr: cfg.APIAddr, Handler: api.New(sched, logger)}
		go func() {
			logger.Info("chwatch: status endpoint listening", "addr", cfg.APIAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("chwatch: status endpoint failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	sched.Run(ctx)
	return nil
}
