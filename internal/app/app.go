// Package app wires the stores, services, reminder scheduler, dispatcher
// and API server into a running application.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/adherence"
	"github.com/gmsas95/dosetrack/internal/api"
	"github.com/gmsas95/dosetrack/internal/channels/telegram"
	"github.com/gmsas95/dosetrack/internal/config"
	"github.com/gmsas95/dosetrack/internal/goals"
	"github.com/gmsas95/dosetrack/internal/meds"
	"github.com/gmsas95/dosetrack/internal/notify"
	"github.com/gmsas95/dosetrack/internal/store"
)

type App struct {
	Config  *config.Config
	Store   *store.Store
	Logger  *zap.Logger
	Version string

	meds       *meds.Service
	goals      *goals.Service
	adherence  *adherence.Aggregator
	scheduler  *notify.Scheduler
	dispatcher *notify.Dispatcher
	server     *api.Server
}

// New builds the full application graph on top of an opened store
func New(cfg *config.Config, st *store.Store, logger *zap.Logger, version string) (*App, error) {
	ids, err := meds.NewCounterAllocator(st.DB(), logger)
	if err != nil {
		return nil, err
	}

	medsStore, err := meds.NewStore(st.DB(), ids)
	if err != nil {
		return nil, err
	}
	goalsStore, err := goals.NewStore(st.DB(), ids)
	if err != nil {
		return nil, err
	}

	registry := notify.NewBadgerRegistry(st.Badger(), logger)
	scheduler := notify.NewScheduler(registry, cfg.Notifications.PreReminderMinutes, logger)

	generator := meds.NewGenerator(cfg.Notifications.ScheduleHorizonDays)
	medsSvc := meds.NewService(medsStore, generator, scheduler, logger)
	goalsSvc := goals.NewService(goalsStore, scheduler, logger)
	aggregator := adherence.NewAggregator(medsStore)

	channels := []notify.Channel{notify.NewLogChannel(logger)}
	if cfg.Channels.Telegram.Enabled {
		tg, err := telegram.New(cfg.Channels.Telegram.BotToken, cfg.Channels.Telegram.ChatID, logger)
		if err != nil {
			logger.Warn("telegram channel unavailable", zap.Error(err))
		} else {
			channels = append(channels, tg)
			logger.Info("telegram channel enabled")
		}
	}

	dispatcher := notify.NewDispatcher(
		registry,
		channels,
		time.Duration(cfg.Notifications.DispatchIntervalSeconds)*time.Second,
		cfg.Notifications.SendRatePerSecond,
		logger,
	)

	server := api.New(cfg, medsSvc, goalsSvc, aggregator, dispatcher.Feed(), logger)

	return &App{
		Config:     cfg,
		Store:      st,
		Logger:     logger,
		Version:    version,
		meds:       medsSvc,
		goals:      goalsSvc,
		adherence:  aggregator,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		server:     server,
	}, nil
}

// RunServer starts the dispatcher and API server and blocks until an
// interrupt arrives, then shuts both down.
func (app *App) RunServer() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go app.dispatcher.Run(ctx)

	go func() {
		if err := app.server.Start(); err != nil {
			app.Logger.Fatal("server error", zap.Error(err))
		}
	}()

	app.Logger.Info("dosetrack started",
		zap.String("version", app.Version),
		zap.String("address", app.Config.Server.Address),
		zap.Int("port", app.Config.Server.Port),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info("shutting down...")
	cancel()

	if err := app.server.Shutdown(); err != nil {
		app.Logger.Error("server shutdown error", zap.Error(err))
	}
	if err := app.Store.Close(); err != nil {
		app.Logger.Error("store close error", zap.Error(err))
	}
}
