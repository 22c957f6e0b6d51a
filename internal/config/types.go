package config

import "strings"

// Config is the top-level configuration for the TradeKuant service.
type Config struct {
	App       AppConfig       `toml:"app"`
	Database  DatabaseConfig  `toml:"database"`
	Trading   TradingConfig   `toml:"trading"`
	Platforms PlatformsConfig `toml:"platforms"`
	Sync      SyncConfig      `toml:"sync"`
	Admin     AdminConfig     `toml:"admin"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// TradingConfig anchors every percentage computation in the system.
// InitialCapital is threaded explicitly into the metrics engine, the CSV
// mapper and the sync service; changing it retroactively changes the
// meaning of historical percentage figures unless rows are recomputed.
type TradingConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	Currency       string  `toml:"currency"`
}

type PlatformsConfig struct {
	Path string `toml:"path"`
}

// SyncConfig drives the day-aligned scheduler and the cron endpoints.
// Secret gates /api/cron/*; when empty those endpoints reject every call.
type SyncConfig struct {
	Enabled        bool                `toml:"enabled"`
	Interval       string              `toml:"interval"`
	OffsetSeconds  int                 `toml:"offset_seconds"`
	RunImmediately bool                `toml:"run_immediately"`
	Secret         string              `toml:"secret"`
	Bitget         BitgetCredentials   `toml:"bitget"`
	Darwinex       DarwinexCredentials `toml:"darwinex"`
}

// BitgetCredentials left empty keeps the bitget client in fixture mode.
type BitgetCredentials struct {
	APIKey     string `toml:"api_key"`
	APISecret  string `toml:"api_secret"`
	Passphrase string `toml:"passphrase"`
	TraderID   string `toml:"trader_id"`
}

type DarwinexCredentials struct {
	APIToken   string `toml:"api_token"`
	DarwinName string `toml:"darwin_name"`
}

type AdminConfig struct {
	Token string `toml:"token"`
}

// keySet tracks which config paths were explicitly set in the files, so
// defaults never clobber an intentional zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
