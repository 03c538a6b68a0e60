package sieve

import (
	"context"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"sieve/engine"
	nt "sieve/entity"
)

// Layout is a yaml description of filters, where they are placed and the
// values they start with.
type Layout struct {
	Filters []nt.Filter    `yaml:"filters"`
	Values  map[string]any `yaml:"values,omitempty"`
}

// LoadLayout reads a layout file.
func LoadLayout(path string) (layout *Layout, err error) {

	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read layout from %s", path)
		return
	}

	layout = &Layout{}
	err = yaml.Unmarshal(data, layout)
	if err != nil {
		err = errors.Wrapf(err, "failed to unmarshal layout from %s", path)
		return
	}

	for i := range layout.Filters {
		flt := &layout.Filters[i]
		for j := range flt.Instances {
			if flt.Instances[j].FilterId == "" {
				flt.Instances[j].FilterId = flt.Id
			}
		}
	}

	return
}

// Fetch finds a filter in the layout, letting a layout stand in for a store.
func (layout *Layout) Fetch(ctx context.Context, id string) (flt nt.Filter, err error) {

	for _, flt = range layout.Filters {
		if flt.Id == id {
			return
		}
	}

	err = errors.Errorf("filter %s not in layout", id)
	return
}

// Register gives an engine the layout's instances, sets the starting values
// and computes every target once.
// Definitions come from the engine's fetcher, which may be the layout itself.
func (layout *Layout) Register(ctx context.Context, eng *engine.Engine) (err error) {

	for _, flt := range layout.Filters {
		for _, inst := range flt.Instances {
			eng.RegisterInstance(inst)
		}
	}

	ids := make([]string, 0, len(layout.Values))
	for id := range layout.Values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		err = eng.SetValue(ctx, id, layout.Values[id])
		if err != nil {
			return
		}
	}

	return eng.Recompute(ctx, eng.Targets()...)
}
