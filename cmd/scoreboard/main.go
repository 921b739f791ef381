package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/api"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/backends"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/config"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/deferred"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/gate"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/metrics"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/nba"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/pub"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/ratelimit"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/refresh"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/render"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/schedule"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

const AlertSNSArnKey = "ALERT_SNS_ARN"

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}

	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	logLevel := flag.String("log-level", "", "overrides log_level from the config")
	width := flag.Int("width", 64, "display width in pixels")
	height := flag.Int("height", 32, "display height in pixels")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	settings, err := config.Load(*configPath, flag.CommandLine.Changed("config"))
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if *logLevel != "" {
		settings.LogLevel = *logLevel
	}
	if lvl, err := log.ParseLevel(settings.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", settings.LogLevel).Warn("unknown log level, keeping info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, ports.Canvas{Width: *width, Height: *height}); err != nil {
		log.WithError(err).Fatal("scoreboard stopped")
	}
	log.Info("scoreboard stopped")
}

func run(ctx context.Context, settings *types.Settings, canvas ports.Canvas) error {
	rec := metrics.New()

	callLog, err := backends.CallLogFromEnv()
	if err != nil {
		return err
	}
	limiter := ratelimit.New(ratelimit.PoliciesFromSettings(settings), callLog, rec)
	source, err := nba.NewCachedSource(nba.NewClient(settings.Upstream, nil), limiter, settings.Operations, rec)
	if err != nil {
		return err
	}

	snapshots, closeSnapshots, err := backends.SnapshotBackendFromEnv(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSnapshots(); err != nil {
			log.WithError(err).Warn("closing snapshot store")
		}
	}()

	store := refresh.NewStore()
	var mirror *refresh.Mirror
	if snapshots != nil {
		mirror = refresh.NewMirror(snapshots)
		restore(ctx, mirror, store)
	}

	refresher := refresh.NewRefresher(store, mirror, rec)
	defer refresher.Stop()

	g := gate.New(settings.Window, rec)
	queue := deferred.NewQueue()
	planner := schedule.NewPlanner(settings, refresher, queue, source, g)
	if err := planner.Start(ctx); err != nil {
		return err
	}

	var alerts *schedule.Alerter
	if arn := os.Getenv(AlertSNSArnKey); arn != "" {
		publisher, err := pub.NewSNSFromEnv(ctx)
		if err != nil {
			return err
		}
		alerts = schedule.NewAlerter(publisher, arn)
	}

	renderer := render.NewLogRenderer(log.StandardLogger())
	scheduler := schedule.NewScheduler(settings, g, queue, store, renderer, schedule.Options{
		Transitioner: renderer,
		Canvas:       canvas,
		Alerts:       alerts,
		Observer:     rec,
	})

	if settings.StatusPort > 0 {
		stopServer, serverDone := api.RunServerInterruptible(settings.StatusPort, &api.Handler{
			Store:         store,
			Deferred:      queue,
			Subscriptions: refresher,
			Frames:        renderer,
			State:         func() string { return scheduler.State().String() },
			Registry:      rec.Registry(),
		})
		defer func() {
			stopServer <- struct{}{}
			if err := <-serverDone; err != nil {
				log.WithError(err).Warn("status server")
			}
		}()
	}

	log.WithFields(log.Fields{
		"favorites": settings.FavoriteTeams,
		"window":    settings.Window.String(),
	}).Info("scoreboard started")

	err = scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// restore seeds the store from the last snapshot so the first screens have data.
func restore(ctx context.Context, mirror *refresh.Mirror, store *refresh.Store) {
	if _, err := refresh.Restore[[]types.Game](ctx, mirror, store, schedule.KeyGamesToday); err != nil {
		log.WithError(err).Warn("restoring games")
	}
	if _, err := refresh.Restore[[]types.StandingRow](ctx, mirror, store, schedule.KeyStandings); err != nil {
		log.WithError(err).Warn("restoring standings")
	}
}
