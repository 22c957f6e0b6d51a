package platformreg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tradekuant/internal/logger"
	"tradekuant/internal/store"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Definition describes one tracked platform from platforms.yaml.
// Schema, when present, constrains the raw payload a sync client may
// hand in for this platform.
type Definition struct {
	Slug       string                 `mapstructure:"slug" yaml:"slug"`
	Name       string                 `mapstructure:"name" yaml:"name"`
	APIEnabled bool                   `mapstructure:"api_enabled" yaml:"api_enabled"`
	ProfileURL string                 `mapstructure:"profile_url" yaml:"profile_url"`
	Color      string                 `mapstructure:"color" yaml:"color"`
	Schema     map[string]interface{} `mapstructure:"schema" yaml:"schema"`

	schemaCompiled *jsonschema.Schema
}

// FileConfig maps the platforms file.
type FileConfig struct {
	Platforms map[string]Definition `mapstructure:"platforms" yaml:"platforms"`
}

// Snapshot is an immutable view of the registered platforms.
type Snapshot struct {
	Version     int64
	LoadedAt    time.Time
	Definitions map[string]Definition
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry loads platform definitions and watches the file for edits,
// so adding a platform or tightening a payload schema needs no restart.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the platforms file and starts watching it.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("platform registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read platforms config failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("platforms reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current platform set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Definition returns the platform for a slug.
func (r *Registry) Definition(slug string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.snapshot.Definitions[strings.ToLower(strings.TrimSpace(slug))]
	return def, ok
}

// Subscribe registers a listener fired on every successful reload.
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// SeedRecords maps the definitions to store records in slug order.
func (r *Registry) SeedRecords() []store.Platform {
	snap := r.Snapshot()
	slugs := make([]string, 0, len(snap.Definitions))
	for slug := range snap.Definitions {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	out := make([]store.Platform, 0, len(slugs))
	for _, slug := range slugs {
		def := snap.Definitions[slug]
		out = append(out, store.Platform{
			Slug:       def.Slug,
			Name:       def.Name,
			APIEnabled: def.APIEnabled,
			ProfileURL: def.ProfileURL,
			Color:      def.Color,
		})
	}
	return out
}

// ValidateObservation checks a sync payload against the platform's
// schema. Platforms without a schema accept anything.
func (r *Registry) ValidateObservation(slug string, raw []byte) error {
	def, ok := r.Definition(slug)
	if !ok {
		return fmt.Errorf("unknown platform: %s", slug)
	}
	return def.Validate(raw)
}

// Validate checks a raw JSON payload against the compiled schema.
func (d Definition) Validate(raw []byte) error {
	if d.schemaCompiled == nil {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return d.schemaCompiled.Validate(payload)
}

func (r *Registry) reload() error {
	cfg, err := readPlatformsFile(r.path)
	if err != nil {
		return err
	}
	defs := make(map[string]Definition)
	for name, def := range cfg.Platforms {
		norm := normalizeDefinition(name, def)
		defs[norm.Slug] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:     r.snapshot.Version + 1,
		LoadedAt:    time.Now(),
		Definitions: defs,
	}
	r.mu.Unlock()
	logger.Infof("Platform registry loaded %d platforms from %s", len(defs), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("platform registry listener")
			cb(snap)
		}(fn)
	}
}

func normalizeDefinition(name string, def Definition) Definition {
	def.Slug = strings.ToLower(strings.TrimSpace(def.Slug))
	if def.Slug == "" {
		def.Slug = strings.ToLower(strings.TrimSpace(name))
	}
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		def.Name = def.Slug
	}
	if len(def.Schema) > 0 {
		if compiled, err := compileSchema(def.Schema); err != nil {
			logger.Errorf("platform schema compile failed slug=%s: %v", def.Slug, err)
		} else {
			def.schemaCompiled = compiled
		}
	}
	return def
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:     src.Version,
		LoadedAt:    src.LoadedAt,
		Definitions: make(map[string]Definition, len(src.Definitions)),
	}
	for slug, def := range src.Definitions {
		dst.Definitions[slug] = def
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func compileSchema(data map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func readPlatformsFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read platforms config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse platforms config failed: %w", err)
	}
	return cfg, nil
}
