package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/internal/usecase"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	signals    *usecase.SignalUseCase
	jobs       *queue.RedisQueue
}

// New creates a new App instance with all dependencies. jobs may be nil.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, signals *usecase.SignalUseCase, jobs *queue.RedisQueue) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		signals:    signals,
		jobs:       jobs,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.signals.LoadLatest(); err != nil {
		a.log.Warn("saved model not loaded", applogger.Error(err))
	}

	if a.jobs != nil {
		if err := a.jobs.Start(ctx); err != nil {
			return err
		}
	}

	go a.retrainLoop(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// retrainLoop periodically retrains the configured symbol once the model is
// due, then prunes old artifacts.
func (a *App) retrainLoop(ctx context.Context) {
	interval := a.cfg.Model.RetrainCheckInterval
	if interval <= 0 {
		return
	}
	q := usecase.CandleQuery{
		Symbol:    a.cfg.Data.Symbol,
		N:         a.cfg.Data.Lookback,
		Timeframe: domrepo.NormalizeTimeframe(a.cfg.Data.Timeframe),
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ran, err := a.signals.MaybeRetrain(ctx, q)
			if err != nil {
				a.log.Warn("scheduled retrain failed", applogger.String("symbol", q.Symbol), applogger.Error(err))
				continue
			}
			if ran {
				removed := a.signals.Cleanup(ctx, a.cfg.Model.BackupCount)
				a.log.Info("scheduled retrain done", applogger.String("symbol", q.Symbol), applogger.Int("artifacts_removed", removed))
			}
		}
	}
}

// shutdown gracefully stops all services. Infrastructure clients are closed
// by the DI cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.jobs != nil {
		if err := a.jobs.Stop(ctx); err != nil {
			a.log.Warn("training queue stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
