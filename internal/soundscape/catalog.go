// Package soundscape manages the YAML catalog of known soundscapes.
package soundscape

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/attune/pkg/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Soundscape describes one playable soundscape.
type Soundscape struct {
	Key         models.SoundscapeKey `yaml:"key" json:"key"`
	Name        string               `yaml:"name" json:"name"`
	Description string               `yaml:"description" json:"description"`
	Keywords    []string             `yaml:"keywords" json:"keywords"`
	Stress      []models.StressLevel `yaml:"stress" json:"stress"`
}

// Config is the top-level YAML structure.
type Config struct {
	Soundscapes []Soundscape `yaml:"soundscapes"`
}

// Registry holds loaded soundscapes, keyed by identifier.
type Registry struct {
	byKey map[models.SoundscapeKey]*Soundscape
	order []models.SoundscapeKey // preserves definition order
}

// Default returns the embedded catalog.
func Default() *Registry {
	r, err := Parse(defaultCatalog)
	if err != nil {
		panic("soundscape: embedded catalog is invalid: " + err.Error())
	}
	return r
}

// Load reads the YAML file at path.
// An empty path or a missing file yields the embedded catalog.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse builds a Registry from YAML. Keys must be unique and non-empty.
func Parse(data []byte) (*Registry, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Soundscapes) == 0 {
		return nil, fmt.Errorf("catalog defines no soundscapes")
	}

	r := &Registry{
		byKey: make(map[models.SoundscapeKey]*Soundscape, len(cfg.Soundscapes)),
	}
	for i := range cfg.Soundscapes {
		s := &cfg.Soundscapes[i]
		if s.Key == "" {
			return nil, fmt.Errorf("soundscape %d has no key", i)
		}
		if _, dup := r.byKey[s.Key]; dup {
			return nil, fmt.Errorf("duplicate soundscape key %q", s.Key)
		}
		for _, lvl := range s.Stress {
			if !lvl.Valid() {
				return nil, fmt.Errorf("soundscape %q: unknown stress level %q", s.Key, lvl)
			}
		}
		r.byKey[s.Key] = s
		r.order = append(r.order, s.Key)
	}
	return r, nil
}

// Get returns a soundscape by key. Returns (nil, false) if not found.
func (r *Registry) Get(key models.SoundscapeKey) (*Soundscape, bool) {
	s, ok := r.byKey[key]
	return s, ok
}

// Has reports whether key is in the catalog.
func (r *Registry) Has(key models.SoundscapeKey) bool {
	_, ok := r.byKey[key]
	return ok
}

// All returns all soundscapes in definition order.
func (r *Registry) All() []*Soundscape {
	result := make([]*Soundscape, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.byKey[key])
	}
	return result
}

// Keys returns a sorted list of soundscape keys.
func (r *Registry) Keys() []models.SoundscapeKey {
	keys := make([]models.SoundscapeKey, len(r.order))
	copy(keys, r.order)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ForStress returns soundscapes suited to the level, in definition order.
// Falls back to the whole catalog when none match.
func (r *Registry) ForStress(level models.StressLevel) []*Soundscape {
	var matched []*Soundscape
	for _, s := range r.All() {
		for _, l := range s.Stress {
			if l == level {
				matched = append(matched, s)
				break
			}
		}
	}
	if len(matched) == 0 {
		return r.All()
	}
	return matched
}

// PromptList renders "key: description" lines for prompting.
func (r *Registry) PromptList() string {
	var sb strings.Builder
	for _, s := range r.All() {
		sb.WriteString("- ")
		sb.WriteString(string(s.Key))
		sb.WriteString(": ")
		sb.WriteString(s.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}
