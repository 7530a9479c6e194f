package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"weddingapp/internal/alerts"
	"weddingapp/internal/config"
	"weddingapp/internal/content"
	"weddingapp/internal/firebase"
	appLog "weddingapp/internal/log"
	"weddingapp/internal/push"
	"weddingapp/internal/rsvp"
	"weddingapp/internal/weather"
	"weddingapp/internal/web"
)

type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	if err := config.LoadEnv(flags.envPath); err != nil {
		appLog.Warn("failed to read env file", "path", flags.envPath, "err", err)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		if conf == nil {
			appLog.Error("failed to load config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Warn("could not write default config, continuing with defaults", "config_path", flags.configPath, "err", err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("weddingapp starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"alerts_remote", conf.Alerts.URL != "",
		"cache", conf.Alerts.Cache.Backend,
		"rsvp_mode", conf.RSVP.Mode,
		"rsvp_sheet", conf.RSVP.SheetsURL != "",
		"reminders", conf.Reminders.Enabled,
		"once", flags.once,
	)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Warn("unknown timezone, using UTC", "timezone", conf.Timezone, "err", err)
		loc = time.UTC
	}
	site, err := content.Default(loc)
	if err != nil {
		appLog.Error("failed to load site content", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	httpClient := &http.Client{Timeout: conf.HTTPTimeout}

	syncer := alerts.NewSynchronizer(alerts.Options{
		URL:    conf.Alerts.URL,
		Client: httpClient,
		Cache:  buildCache(conf.Alerts.Cache),
		Static: site.Alerts(),
	})

	// Priming sync. Everything visible at startup counts as seen so that a
	// restart does not re-announce old urgent alerts.
	first, _ := syncer.Refresh(ctx)
	appLog.Info("initial alert sync", "source", first.Source, "alerts", len(first.Alerts), "from_cache", first.FromCache)

	if flags.once {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(first); err != nil {
			appLog.Error("failed to print alerts", err)
			os.Exit(1)
		}
		return
	}

	deps := web.Deps{
		Config:  conf,
		Content: site,
		Alerts:  syncer,
		Weather: weather.NewClient(conf.Weather.URL, conf.Weather.Latitude, conf.Weather.Longitude, conf.Weather.CacheTTL, httpClient),
	}

	var docs rsvp.DocumentStore
	fbApp, err := firebase.NewApp(ctx, conf.Firebase)
	switch {
	case errors.Is(err, firebase.ErrNotConfigured):
		appLog.Info("firebase not configured; RSVP backup and push disabled")
	case err != nil:
		appLog.Error("firebase init failed; RSVP backup and push disabled", err)
	default:
		defer fbApp.Close()
		docs = fbApp.Documents()
		tokens := fbApp.Tokens(conf.Firebase.TokensCollection)
		deps.Tokens = tokens
		deps.Broadcaster = push.NewBroadcaster(tokens, fbApp.Sender())
	}

	deps.RSVP = rsvp.NewSubmitter(rsvp.Options{
		Sheets:        rsvp.NewSheetsWriter(conf.RSVP.SheetsURL, conf.RSVP.Mode, httpClient),
		Backup:        rsvp.NewBackupWriter(docs, conf.RSVP.BackupCollection),
		BackupTimeout: conf.RSVP.BackupTimeout,
	})

	sched, err := startScheduler(ctx, conf, site, loc, syncer, deps.Broadcaster)
	if err != nil {
		appLog.Error("failed to start scheduler", err)
		os.Exit(1)
	}
	defer func() { <-sched.Stop().Done() }()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(deps, flags.debug).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLog.Info("http server listening", "addr", conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("http server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http server shutdown failed", err)
	}
	appLog.Info("weddingapp exiting")
}

// buildCache picks the alert cache backend. An unreachable redis falls
// back to the file store.
func buildCache(c config.CacheConfig) alerts.Store {
	switch c.Backend {
	case config.CacheMemory:
		return alerts.NewMemoryStore()
	case config.CacheRedis:
		client, err := alerts.DialRedis(c.Redis.Addr, c.Redis.Password, c.Redis.DB)
		if err == nil {
			appLog.Info("alert cache on redis", "addr", c.Redis.Addr, "key", c.Key)
			return alerts.NewRedisStore(client, c.Key)
		}
		appLog.Error("redis unavailable, using file cache", err, "addr", c.Redis.Addr)
	}
	return alerts.NewFileStore(c.Path)
}

// startScheduler registers the alert refresh and, when enabled, the push
// reminder job.
func startScheduler(ctx context.Context, conf *config.Config, site *content.Content, loc *time.Location,
	syncer *alerts.Synchronizer, bc *push.Broadcaster) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(loc))

	_, err := c.AddFunc(conf.Alerts.Refresh, func() {
		res, fresh := syncer.Refresh(ctx)
		appLog.Debug("scheduled alert sync", "source", res.Source, "alerts", len(res.Alerts), "new_urgent", len(fresh))
		if conf.Alerts.PushUrgent && bc != nil && len(fresh) > 0 {
			n := bc.AnnounceAlerts(ctx, fresh)
			appLog.Info("urgent alerts announced", "count", n)
		}
	})
	if err != nil {
		return nil, err
	}

	if conf.Reminders.Enabled && bc != nil {
		events := make([]push.Event, 0, len(site.Schedule))
		for _, ev := range site.Schedule {
			events = append(events, push.Event{ID: ev.ID, Title: ev.Title, Start: ev.Start, Location: ev.Location})
		}
		now := time.Now().In(loc)
		planner, err := push.NewReminderPlanner(push.PlannerOptions{
			Events:           events,
			Lead:             conf.Reminders.EventLead,
			RSVPRule:         conf.Reminders.RSVPRule,
			RSVPStart:        now,
			RSVPDeadline:     site.RSVPDeadlineAt,
			RSVPDeadlineText: site.RSVPDeadline,
		})
		if err != nil {
			return nil, err
		}
		job := push.NewReminderJob(planner, bc, now)
		if _, err := c.AddFunc(conf.Reminders.Check, func() { job.Run(ctx, time.Now().In(loc)) }); err != nil {
			return nil, err
		}
	}

	c.Start()
	return c, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to an optional .env file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one alert sync, print the result and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
