package app

import (
	"context"
	"fmt"
	"time"

	tkcfg "tradekuant/internal/config"
	"tradekuant/internal/dashboard"
	"tradekuant/internal/logger"
	"tradekuant/internal/platformreg"
	"tradekuant/internal/scheduler"
	"tradekuant/internal/store"
	"tradekuant/internal/store/gormstore"
	"tradekuant/internal/syncjob"
	apihttp "tradekuant/internal/transport/http/api"
)

// AppBuilder assembles the service graph. The *Fn hooks exist so tests
// can slot in fakes without a real sqlite file or platforms.yaml.
type AppBuilder struct {
	cfg *tkcfg.Config

	storeFn    func(path string) (store.Store, error)
	registryFn func(path string) (*platformreg.Registry, error)
	serverFn   func(apihttp.ServerConfig) (*apihttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(string) (store.Store, error) { return st, nil }
	}
}

func WithRegistry(reg *platformreg.Registry) AppBuilderOption {
	return func(b *AppBuilder) {
		b.registryFn = func(string) (*platformreg.Registry, error) { return reg, nil }
	}
}

func NewAppBuilder(cfg *tkcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg: cfg,
		storeFn: func(path string) (store.Store, error) {
			st, err := gormstore.NewGormStore(path)
			if err != nil {
				return nil, err
			}
			return st, nil
		},
		registryFn: platformreg.NewRegistry,
		serverFn:   apihttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	st, err := b.storeFn(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry, err := b.registryFn(cfg.Platforms.Path)
	if err != nil {
		return nil, fmt.Errorf("load platform registry: %w", err)
	}
	if err := st.SeedPlatforms(ctx, registry.SeedRecords()); err != nil {
		return nil, fmt.Errorf("seed platforms: %w", err)
	}
	// Edits to platforms.yaml land in the store without a restart.
	registry.Subscribe(func(snap platformreg.Snapshot) {
		if err := st.SeedPlatforms(context.Background(), registry.SeedRecords()); err != nil {
			logger.Errorf("re-seed platforms after registry reload v%d failed: %v", snap.Version, err)
			return
		}
		logger.Infof("platform registry v%d applied (%d definitions)", snap.Version, len(snap.Definitions))
	})

	dash := dashboard.NewService(st, cfg.Trading.InitialCapital)

	sync := syncjob.NewService(st, dash, registry, cfg.Trading.InitialCapital)
	registerSyncClients(sync, registry, cfg)

	server, err := b.serverFn(apihttp.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Store:      st,
		Dashboard:  dash,
		Sync:       sync,
		AdminToken: cfg.Admin.Token,
		SyncSecret: cfg.Sync.Secret,
	})
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}

	app := &App{
		cfg:      cfg,
		store:    st,
		registry: registry,
		dash:     dash,
		sync:     sync,
		server:   server,
	}
	if cfg.Sync.Enabled {
		interval, ok := scheduler.ParseIntervalDuration(cfg.Sync.Interval)
		if !ok {
			return nil, fmt.Errorf("invalid sync interval %q", cfg.Sync.Interval)
		}
		app.syncInterval = interval
		app.syncOffset = time.Duration(cfg.Sync.OffsetSeconds) * time.Second
	}
	return app, nil
}

// registerSyncClients attaches one API client per api-enabled registry
// definition. Platforms without a client (etoro) stay manual-only.
func registerSyncClients(sync *syncjob.Service, registry *platformreg.Registry, cfg *tkcfg.Config) {
	if def, ok := registry.Definition("bitget"); ok && def.APIEnabled {
		sync.Register(syncjob.NewBitgetClient(syncjob.BitgetConfig{
			APIKey:     cfg.Sync.Bitget.APIKey,
			APISecret:  cfg.Sync.Bitget.APISecret,
			Passphrase: cfg.Sync.Bitget.Passphrase,
			TraderID:   cfg.Sync.Bitget.TraderID,
		}))
	}
	if def, ok := registry.Definition("darwinex"); ok && def.APIEnabled {
		sync.Register(syncjob.NewDarwinexClient(syncjob.DarwinexConfig{
			APIToken:       cfg.Sync.Darwinex.APIToken,
			DarwinName:     cfg.Sync.Darwinex.DarwinName,
			InitialCapital: cfg.Trading.InitialCapital,
		}))
	}
}
