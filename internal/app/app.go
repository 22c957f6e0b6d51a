package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tkcfg "tradekuant/internal/config"
	"tradekuant/internal/dashboard"
	"tradekuant/internal/logger"
	"tradekuant/internal/platformreg"
	"tradekuant/internal/scheduler"
	"tradekuant/internal/store"
	"tradekuant/internal/syncjob"
	apihttp "tradekuant/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App owns the wired services and runs them until shutdown.
type App struct {
	cfg      *tkcfg.Config
	store    store.Store
	registry *platformreg.Registry
	dash     *dashboard.Service
	sync     *syncjob.Service
	server   *apihttp.Server

	syncInterval time.Duration
	syncOffset   time.Duration
}

// NewApp builds the application object without starting anything.
func NewApp(cfg *tkcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return NewAppBuilder(cfg).Build(context.Background())
}

// Run serves HTTP and, when sync is enabled, the aligned sync loop.
// It blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	a.printStartupSummary()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.cfg.Sync.Enabled && a.syncInterval > 0 {
		group.Go(func() error {
			sched := scheduler.NewAlignedScheduler(ctx, a.syncInterval, a.syncOffset)
			sched.RunImmediately = a.cfg.Sync.RunImmediately
			sched.Start(func() {
				report := a.sync.SyncAll(ctx)
				if len(report.Failed) > 0 {
					logger.Warnf("sync run finished synced=%d failed=%d", len(report.Synced), len(report.Failed))
				}
			})
			return nil
		})
	}

	err := group.Wait()
	if cerr := a.store.Close(); cerr != nil {
		logger.Warnf("closing store: %v", cerr)
	}
	return err
}

// Dashboard exposes the aggregation service for replay harnesses.
func (a *App) Dashboard() *dashboard.Service {
	if a == nil {
		return nil
	}
	return a.dash
}

func (a *App) printStartupSummary() {
	slugs := a.sync.Slugs()
	clients := "-"
	if len(slugs) > 0 {
		clients = strings.Join(slugs, ", ")
	}
	logger.Infof("tradekuant starting env=%s addr=%s db=%s capital=%.2f %s",
		a.cfg.App.Env, a.server.Addr(), a.cfg.Database.Path, a.cfg.Trading.InitialCapital, a.cfg.Trading.Currency)
	logger.Infof("platforms registered=%d api_clients=%s sync_enabled=%v interval=%s",
		len(a.registry.Snapshot().Definitions), clients, a.cfg.Sync.Enabled, a.cfg.Sync.Interval)
}
