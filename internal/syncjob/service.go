package syncjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"tradekuant/internal/dashboard"
	"tradekuant/internal/logger"
	"tradekuant/internal/store"

	"github.com/google/uuid"
)

// ErrUnknownPlatform marks a sync request for a slug with no client or
// no store row. The cron endpoint maps it to 404.
var ErrUnknownPlatform = errors.New("unknown platform")

// IsUnknownPlatform reports whether err came from an unknown slug.
func IsUnknownPlatform(err error) bool {
	return errors.Is(err, ErrUnknownPlatform)
}

// ObservationValidator checks a raw upstream payload against the
// platform's registered schema before it is trusted.
type ObservationValidator interface {
	ValidateObservation(slug string, raw []byte) error
}

// Service pulls observations from the registered platform clients and
// writes normalized snapshots. Unlike the manual import path, the sync
// path computes drawdown against the real running peak in storage.
type Service struct {
	store          store.Store
	dash           *dashboard.Service
	clients        map[string]Client
	validator      ObservationValidator
	initialCapital float64
}

func NewService(st store.Store, dash *dashboard.Service, validator ObservationValidator, initialCapital float64) *Service {
	return &Service{
		store:          st,
		dash:           dash,
		clients:        make(map[string]Client),
		validator:      validator,
		initialCapital: initialCapital,
	}
}

// Register adds a platform client. Later registrations for the same
// slug win.
func (s *Service) Register(c Client) {
	if c == nil {
		return
	}
	s.clients[c.Slug()] = c
}

// Slugs lists the registered platform slugs in stable order.
func (s *Service) Slugs() []string {
	out := make([]string, 0, len(s.clients))
	for slug := range s.clients {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// SyncPlatform fetches the latest observation for one platform, stores
// it as an api-sourced snapshot and refreshes the metrics caches.
func (s *Service) SyncPlatform(ctx context.Context, slug string) (store.Snapshot, error) {
	traceID := uuid.NewString()[:8]

	client, ok := s.clients[slug]
	if !ok {
		return store.Snapshot{}, fmt.Errorf("%w: no sync client registered for %s", ErrUnknownPlatform, slug)
	}
	platform, found, err := s.store.GetPlatformBySlug(ctx, slug)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("lookup platform %s: %w", slug, err)
	}
	if !found {
		return store.Snapshot{}, fmt.Errorf("%w: %s has no store row", ErrUnknownPlatform, slug)
	}
	if !platform.APIEnabled {
		return store.Snapshot{}, fmt.Errorf("%w: %s is not api-enabled", ErrUnknownPlatform, slug)
	}

	obs, err := client.FetchLatest(ctx)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("fetch %s: %w", slug, err)
	}
	if obs.Date == "" {
		obs.Date = time.Now().Format("2006-01-02")
	}
	if s.validator != nil && len(obs.Raw) > 0 {
		if err := s.validator.ValidateObservation(slug, obs.Raw); err != nil {
			return store.Snapshot{}, fmt.Errorf("payload for %s rejected: %w", slug, err)
		}
	}

	snap, err := s.buildSnapshot(ctx, platform.ID, obs)
	if err != nil {
		return store.Snapshot{}, err
	}
	stored, err := s.store.UpsertSnapshot(ctx, snap)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("store snapshot for %s: %w", slug, err)
	}
	logger.Infof("[%s] synced %s: date=%s equity=%.2f drawdown=%.2f%%",
		traceID, slug, stored.Date, stored.Equity, stored.Drawdown)

	if fetcher, ok := client.(TradeFetcher); ok {
		trades, err := fetcher.FetchTrades(ctx)
		if err != nil {
			logger.Warnf("[%s] trade history for %s failed: %v", traceID, slug, err)
		} else {
			for _, trade := range trades {
				trade.PlatformID = platform.ID
				if err := s.store.UpsertTrade(ctx, trade); err != nil {
					return store.Snapshot{}, fmt.Errorf("store trade for %s: %w", slug, err)
				}
			}
		}
	}

	if s.dash != nil {
		if err := s.dash.RecomputeCaches(ctx); err != nil {
			return store.Snapshot{}, fmt.Errorf("recompute caches: %w", err)
		}
	}
	return stored, nil
}

// buildSnapshot derives the percentage fields. The peak is the highest
// of storage's running peak, the fresh equity, and the capital floor.
func (s *Service) buildSnapshot(ctx context.Context, platformID int, obs Observation) (store.Snapshot, error) {
	peak, err := s.store.RunningPeak(ctx, platformID)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("running peak: %w", err)
	}
	if obs.Equity > peak {
		peak = obs.Equity
	}
	if peak < s.initialCapital {
		peak = s.initialCapital
	}

	pnlPercent := 0.0
	if s.initialCapital != 0 {
		pnlPercent = obs.TotalPnL / s.initialCapital * 100
	}
	drawdown := 0.0
	if peak > 0 {
		drawdown = (peak - obs.Equity) / peak * 100
	}

	raw := obs.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(obs)
	}
	return store.Snapshot{
		PlatformID:      platformID,
		Date:            obs.Date,
		Equity:          obs.Equity,
		DailyPnL:        obs.DailyPnL,
		TotalPnL:        obs.TotalPnL,
		TotalPnLPercent: pnlPercent,
		PeakEquity:      &peak,
		Drawdown:        drawdown,
		Copiers:         obs.Copiers,
		AUM:             obs.AUM,
		Source:          store.SourceAPI,
		RawData:         raw,
	}, nil
}

// Report summarizes one SyncAll run.
type Report struct {
	Synced []string          `json:"synced"`
	Failed map[string]string `json:"failed,omitempty"`
}

// SyncAll runs every registered client. A failing platform is reported
// and skipped, never fatal for the others.
func (s *Service) SyncAll(ctx context.Context) Report {
	report := Report{Failed: make(map[string]string)}
	for _, slug := range s.Slugs() {
		if _, err := s.SyncPlatform(ctx, slug); err != nil {
			logger.Errorf("sync %s failed: %v", slug, err)
			report.Failed[slug] = err.Error()
			continue
		}
		report.Synced = append(report.Synced, slug)
	}
	return report
}
