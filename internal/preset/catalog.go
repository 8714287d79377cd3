// Package preset holds the named adjustment chains variants can be instantiated from.
// The catalog is built once at startup and is read-only afterwards.
package preset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/variant"
	"gopkg.in/yaml.v3"
)

var errNilFactory = errors.New("preset catalog needs a variant factory")

// Definition is the declarative form of one preset.
type Definition struct {
	Label       string                    `yaml:"label"`
	Warm        bool                      `yaml:"warm"`
	Adjustments []model.AdjustmentRequest `yaml:"adjustments"`
}

// Configuration is the presets file:
//
//	presets:
//	  thumbnail:
//	    label: Thumbnail
//	    warm: true
//	    adjustments:
//	      - type: resize
//	        options: {width: 100, height: 100, mode: outbound}
type Configuration struct {
	Presets map[string]Definition `yaml:"presets"`
}

type preset struct {
	id    string
	label string
	warm  bool
	chain *adjustment.Chain
}

type Catalog struct {
	factory *variant.Factory
	presets map[string]preset
	ids     []string
}

// LoadFromConfiguration validates every descriptor up front; the first malformed one fails the
// whole catalog with a *model.ConfigurationError naming the preset.
func LoadFromConfiguration(cfg Configuration, factory *variant.Factory) (*Catalog, error) {
	if factory == nil {
		return nil, errNilFactory
	}

	c := &Catalog{factory: factory, presets: make(map[string]preset, len(cfg.Presets))}
	for id, def := range cfg.Presets {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, &model.ConfigurationError{Index: -1, Field: "id", Err: errors.New("empty preset id")}
		}
		if _, dup := c.presets[id]; dup {
			return nil, &model.ConfigurationError{Preset: id, Index: -1, Field: "id", Err: errors.New("duplicate preset id")}
		}

		chain, err := adjustment.FromRequests(def.Adjustments)
		if err != nil {
			var cfgErr *model.ConfigurationError
			if errors.As(err, &cfgErr) {
				cfgErr.Preset = id
				return nil, cfgErr
			}
			return nil, &model.ConfigurationError{Preset: id, Index: -1, Err: err}
		}

		label := def.Label
		if label == "" {
			label = id
		}
		c.presets[id] = preset{id: id, label: label, warm: def.Warm, chain: chain}
		c.ids = append(c.ids, id)
	}
	slices.Sort(c.ids)
	return c, nil
}

// Parse reads the YAML presets document.
func Parse(data []byte) (Configuration, error) {
	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, &model.ConfigurationError{Index: -1, Err: fmt.Errorf("failed to parse presets: %w", err)}
	}
	return cfg, nil
}

func LoadFile(path string, factory *variant.Factory) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return LoadFromConfiguration(cfg, factory)
}

// Instantiate builds and renders a fresh variant of original from the preset's chain.
// The variant gets its own copy of the chain.
func (c *Catalog) Instantiate(ctx context.Context, id string, original variant.Asset, opts ...variant.Option) (*variant.Variant, error) {
	p, ok := c.presets[id]
	if !ok {
		return nil, &model.UnknownPresetError{ID: id}
	}

	opts = append([]variant.Option{variant.WithName(p.label)}, opts...)
	opts = append(opts, variant.WithPreset(p.id), variant.WithChain(p.chain))
	return c.factory.New(ctx, original, opts...)
}

// IDs are sorted.
func (c *Catalog) IDs() []string {
	return slices.Clone(c.ids)
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.presets[id]
	return ok
}

// Chain returns a copy of the preset's chain.
func (c *Catalog) Chain(id string) (*adjustment.Chain, error) {
	p, ok := c.presets[id]
	if !ok {
		return nil, &model.UnknownPresetError{ID: id}
	}
	return p.chain.Clone(), nil
}

func (c *Catalog) Get(id string) (model.PresetInfo, error) {
	p, ok := c.presets[id]
	if !ok {
		return model.PresetInfo{}, &model.UnknownPresetError{ID: id}
	}
	return model.PresetInfo{
		ID:          p.id,
		Label:       p.label,
		Warm:        p.warm,
		Adjustments: p.chain.Requests(),
	}, nil
}

// Infos lists all presets in id order.
func (c *Catalog) Infos() []model.PresetInfo {
	res := make([]model.PresetInfo, 0, len(c.ids))
	for _, id := range c.ids {
		info, _ := c.Get(id)
		res = append(res, info)
	}
	return res
}

// Warm returns the ids of presets rendered ahead of time for every new original.
func (c *Catalog) Warm() []string {
	var res []string
	for _, id := range c.ids {
		if c.presets[id].warm {
			res = append(res, id)
		}
	}
	return res
}
