package config

import (
	"fmt"
	"strings"
)

// validate performs basic sanity checks on the merged configuration.
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Platforms.validate(); err != nil {
		return err
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if strings.TrimSpace(d.Path) == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.InitialCapital <= 0 {
		return fmt.Errorf("trading.initial_capital must be > 0")
	}
	if strings.TrimSpace(t.Currency) == "" {
		return fmt.Errorf("trading.currency cannot be empty")
	}
	return nil
}

func (p *PlatformsConfig) validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("platforms.path cannot be empty")
	}
	return nil
}

func (s *SyncConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if !IsValidInterval(s.Interval) {
		return fmt.Errorf("sync.interval must look like 30m/6h/1d/1w, got %q", s.Interval)
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("sync.offset_seconds must be >= 0")
	}
	return nil
}

// IsValidInterval accepts digits followed by one of m/h/d/w.
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
