package config

import "strings"

const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":8880"
	defaultAppLogPath     = "/data/logs/tradekuant.log"
	defaultDatabasePath   = "/data/db/tradekuant.db"
	defaultInitialCapital = 300
	defaultCurrency       = "EUR"
	defaultPlatformsPath  = "configs/platforms.yaml"
	defaultSyncInterval   = "1d"
	defaultSyncOffsetSecs = 300
)

// applyDefaults fills every section; explicitly-set keys are left alone.
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Database.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Platforms.applyDefaults(keys)
	c.Sync.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DatabaseConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("database.path", &d.Path, defaultDatabasePath),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.currency", &t.Currency, defaultCurrency),
		fieldDefault{
			key:   "trading.initial_capital",
			need:  func() bool { return t.InitialCapital <= 0 },
			apply: func() { t.InitialCapital = defaultInitialCapital },
		},
	)
}

func (p *PlatformsConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("platforms.path", &p.Path, defaultPlatformsPath),
	)
}

func (s *SyncConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("sync.enabled", &s.Enabled, true),
		stringFieldDefault("sync.interval", &s.Interval, defaultSyncInterval),
		fieldDefault{
			key:   "sync.offset_seconds",
			need:  func() bool { return s.OffsetSeconds <= 0 },
			apply: func() { s.OffsetSeconds = defaultSyncOffsetSecs },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && !*target
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
