package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mobcal/internal/catalogue"
	"mobcal/internal/config"
	"mobcal/internal/expand"
	"mobcal/internal/ics"
	appLog "mobcal/internal/log"
	"mobcal/internal/refresh"
	"mobcal/internal/web"
)

// flagConfig holds CLI flag values; non-empty values override the config file.
type flagConfig struct {
	configPath string
	catalogue  string
	listen     string
	now        string
	once       bool
	ics        bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if flags.catalogue != "" {
		conf.Catalogue = flags.catalogue
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	clock := time.Now
	if flags.now != "" {
		fixed, err := time.Parse(time.RFC3339, flags.now)
		if err != nil {
			appLog.Error("invalid -now value", err, "now", flags.now)
			os.Exit(2)
		}
		clock = func() time.Time { return fixed }
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"catalogue", conf.Catalogue,
		"refresh", conf.RefreshCron,
		"backfill_days", conf.BackfillDays,
		"horizon_days", conf.HorizonDays,
		"workers", conf.Workers,
		"once", flags.once,
	)

	r := refresh.New(refresh.Options{
		Source:       conf.Catalogue,
		Fetcher:      catalogue.NewFetcher(conf.CacheDir),
		BackfillDays: conf.BackfillDays,
		HorizonDays:  conf.HorizonDays,
		Expand: expand.Options{
			URLTemplate: conf.URLTemplate,
			Workers:     conf.Workers,
		},
		Now: clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if flags.once {
		if err := runOnce(ctx, r, conf, flags.ics); err != nil {
			appLog.Error("evaluation failed", err, "catalogue", conf.Catalogue)
			os.Exit(1)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	go func() {
		if err := r.Run(ctx, conf.RefreshCron); err != nil {
			appLog.Error("refresh scheduler failed", err)
			cancel()
		}
	}()

	if err := web.NewServer(conf, r).Serve(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("mobcal exiting")
}

// runOnce evaluates the catalogue once and prints JSON (or the iCalendar
// feed) to stdout.
func runOnce(ctx context.Context, r *refresh.Refresher, conf *config.Config, asICS bool) error {
	snap, err := r.Refresh(ctx)
	if err != nil {
		return err
	}
	if asICS {
		_, err := fmt.Fprint(os.Stdout, ics.Encode(conf.CalendarName, snap.Result.Occurrences, snap.GeneratedAt))
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(web.NewEventsResponse(snap, web.EventsQuery{}))
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/mobcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.catalogue, "catalogue", "", "Catalogue path or URL (overrides config if set)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.now, "now", "", "Evaluate as of this RFC 3339 instant instead of the current time")
	flag.BoolVar(&cfg.once, "once", false, "Evaluate the catalogue once, print JSON to stdout and exit")
	flag.BoolVar(&cfg.ics, "ics", false, "With -once, print the iCalendar feed instead of JSON")

	flag.Parse()

	return cfg
}
