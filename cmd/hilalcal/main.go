package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hilalcal/internal/capture"
	"hilalcal/internal/config"
	appLog "hilalcal/internal/log"
	"hilalcal/internal/store"
	"hilalcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	snapshot   bool
	output     string
	seed       bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("hilalcal failed", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.output != "" {
		conf.Snapshot.Output = flags.output
	}
	if err := appLog.SetLevelString(conf.LogLevel); err != nil {
		appLog.Warn("unknown log level; keeping info", "log_level", conf.LogLevel)
	}

	appLog.Info("hilalcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"store", conf.Store.Driver,
		"feeds", len(conf.Feeds),
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := store.Open(ctx, conf)
	if err != nil {
		return err
	}
	defer src.Close()

	if flags.seed {
		w, ok := src.(store.Writer)
		if !ok {
			return store.ErrReadOnly
		}
		n, err := store.Seed(ctx, w, time.Now(), conf.Location())
		if err != nil {
			return err
		}
		appLog.Info("demo events seeded", "count", n)
	}

	refresher := store.NewRefresher(src, 30*time.Second)
	if err := refresher.Refresh(ctx); err != nil {
		// Already logged; the server starts with an empty set.
		appLog.Debug("initial refresh failed", "error", err.Error())
	}

	if flags.once {
		logSummary(refresher.Snapshot())
		return nil
	}

	if err := refresher.Start(conf.RefreshCron); err != nil {
		return err
	}
	defer refresher.Stop()

	srv := web.NewServer(conf, refresher.Snapshot())
	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if flags.snapshot {
		snapErr := capture.CapturePNG(ctx, capture.Options{
			URL:        conf.SnapshotURL(),
			OutputPath: conf.Snapshot.Output,
			Width:      conf.Snapshot.Width,
			Height:     conf.Snapshot.Height,
		})
		shutdown(httpServer)
		return snapErr
	}

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	shutdown(httpServer)
	appLog.Info("hilalcal exiting")
	return nil
}

func shutdown(s *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
}

func logSummary(snap *store.Snapshot) {
	events := snap.Events()
	cities := make(map[string]int)
	for _, ev := range events {
		cities[ev.City]++
	}
	appLog.Info("published events loaded", "count", len(events), "cities", len(cities))
	for _, ev := range events {
		appLog.Debug("event", "id", ev.ID, "title", ev.DisplayTitle(), "start", ev.Start, "city", ev.City)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the event source once, log a summary and exit")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Capture /calendar to a PNG and exit")
	flag.StringVar(&cfg.output, "out", "", "Snapshot PNG path (overrides snapshot.output)")
	flag.BoolVar(&cfg.seed, "seed", false, "Insert demo events into the configured store")

	flag.Parse()

	return cfg
}
