// Package preset manages reusable bracket shapes: named ladders of stop and
// target tiers expressed relative to the entry price, loaded from a YAML
// file and materialized into concrete plan legs.
package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gttbracket/internal/logger"
)

// Tier is one rung of a preset ladder. OffsetPct is the unsigned distance
// from entry in percent; the position side decides which way it points.
// Weight is the tier's share of the total quantity.
type Tier struct {
	Label     string  `yaml:"label"`
	OffsetPct float64 `yaml:"offset_pct"`
	Weight    int     `yaml:"weight"`
}

// Preset is a named bracket shape.
type Preset struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Stops       []Tier `yaml:"stops"`
	Targets     []Tier `yaml:"targets"`
}

// FileConfig maps the presets file.
type FileConfig struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Snapshot is the published preset set.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Presets  map[string]Preset
}

// Registry loads the preset file and optionally watches it for edits.
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry reads the presets file; with watch enabled it hot-reloads on
// file change, keeping the last good snapshot when a reload fails.
func NewRegistry(path string, watch bool) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("preset registry requires a path")
	}
	r := &Registry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading presets file failed: %w", err)
		}
		v.OnConfigChange(func(fsnotify.Event) {
			if err := r.reload(); err != nil {
				logger.Errorf("preset reload failed, keeping previous set: %v", err)
			}
		})
		v.WatchConfig()
		r.v = v
	}
	return r, nil
}

// Snapshot returns the current preset set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Preset returns the preset with the given ID.
func (r *Registry) Preset(id string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Presets[strings.TrimSpace(id)]
	return p, ok
}

func (r *Registry) reload() error {
	cfg, err := readPresetFile(r.path)
	if err != nil {
		return err
	}
	presets := make(map[string]Preset, len(cfg.Presets))
	for name, p := range cfg.Presets {
		norm := normalizePreset(name, p)
		presets[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Presets:  presets,
	}
	r.mu.Unlock()
	logger.Infof("preset registry loaded %d presets from %s", len(presets), filepath.Base(r.path))
	return nil
}

func normalizePreset(name string, p Preset) Preset {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = strings.TrimSpace(name)
	}
	p.Description = strings.TrimSpace(p.Description)
	for i := range p.Stops {
		p.Stops[i].Label = strings.TrimSpace(p.Stops[i].Label)
	}
	for i := range p.Targets {
		p.Targets[i].Label = strings.TrimSpace(p.Targets[i].Label)
	}
	return p
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Presets:  make(map[string]Preset, len(src.Presets)),
	}
	for id, p := range src.Presets {
		dst.Presets[id] = p
	}
	return dst
}

func readPresetFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("reading presets file failed: %w", err)
	}
	if err := validateShape(raw); err != nil {
		return FileConfig{}, err
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parsing presets file failed: %w", err)
	}
	return cfg, nil
}

// presetFileSchema is the structural contract for the presets file. Schema
// validation runs before the typed decode so a broken file is rejected with
// a field-level message instead of half-loading.
const presetFileSchema = `{
	"type": "object",
	"required": ["presets"],
	"properties": {
		"presets": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"description": {"type": "string"},
					"stops": {"$ref": "#/$defs/tiers"},
					"targets": {"$ref": "#/$defs/tiers"}
				}
			}
		}
	},
	"$defs": {
		"tiers": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["label", "offset_pct", "weight"],
				"properties": {
					"label": {"type": "string", "minLength": 1},
					"offset_pct": {"type": "number", "exclusiveMinimum": 0},
					"weight": {"type": "integer", "minimum": 1}
				}
			}
		}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func validateShape(raw []byte) error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("presets.json", strings.NewReader(presetFileSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("presets.json")
	})
	if schemaErr != nil {
		return fmt.Errorf("compiling presets schema: %w", schemaErr)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing presets file failed: %w", err)
	}
	// The schema validator wants encoding/json value types, so round-trip
	// the YAML document through JSON before validating.
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalizing presets file failed: %w", err)
	}
	if err := json.Unmarshal(buf, &doc); err != nil {
		return fmt.Errorf("normalizing presets file failed: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("presets file rejected: %w", err)
	}
	return nil
}
