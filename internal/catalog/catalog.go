// Package catalog loads the read-only reference list of cities that can be
// tracked. The default list is embedded from cities.yaml; an alternative
// file with the same layout can be supplied instead.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/derickschaefer/timedeck/internal/clock"
	"github.com/derickschaefer/timedeck/internal/model"
)

//go:embed cities.yaml
var embedded []byte

// ErrUnknownCity is returned by MustLookup for an id not in the catalog.
var ErrUnknownCity = errors.New("unknown city")

type file struct {
	Cities []model.City `yaml:"cities"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	cities []model.City
	byID   map[string]int
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Load reads the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog. Every entry needs an id, name,
// country and a timezone the runtime recognizes; ids must be unique.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(f.Cities) == 0 {
		return nil, fmt.Errorf("catalog has no cities")
	}

	c := &Catalog{
		cities: f.Cities,
		byID:   make(map[string]int, len(f.Cities)),
	}
	for i, city := range f.Cities {
		switch {
		case city.ID == "":
			return nil, fmt.Errorf("city %d: missing id", i+1)
		case city.Name == "":
			return nil, fmt.Errorf("city %s: missing name", city.ID)
		case city.Country == "":
			return nil, fmt.Errorf("city %s: missing country", city.ID)
		case !clock.IsValidTimezone(city.Timezone):
			return nil, fmt.Errorf("city %s: invalid timezone %q", city.ID, city.Timezone)
		}
		if _, dup := c.byID[city.ID]; dup {
			return nil, fmt.Errorf("city %s: duplicate id", city.ID)
		}
		c.byID[city.ID] = i
	}
	return c, nil
}

// Len returns the number of cities.
func (c *Catalog) Len() int { return len(c.cities) }

// All returns a copy of every city in catalog order.
func (c *Catalog) All() []model.City {
	return append([]model.City(nil), c.cities...)
}

// Lookup returns the city with id.
func (c *Catalog) Lookup(id string) (model.City, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.City{}, false
	}
	return c.cities[i], true
}

// MustLookup is Lookup with an ErrUnknownCity error for a missing id.
func (c *Catalog) MustLookup(id string) (model.City, error) {
	city, ok := c.Lookup(id)
	if !ok {
		return model.City{}, fmt.Errorf("%w: %s", ErrUnknownCity, id)
	}
	return city, nil
}

// Search returns cities whose name or country contains query, ignoring case.
// An empty query matches everything.
func (c *Catalog) Search(query string) []model.City {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.City
	for _, city := range c.cities {
		if q == "" ||
			strings.Contains(strings.ToLower(city.Name), q) ||
			strings.Contains(strings.ToLower(city.Country), q) {
			out = append(out, city)
		}
	}
	return out
}

// Available returns the cities a selector should offer: those not in
// tracked, filtered by query against the "Name, Country" label.
func (c *Catalog) Available(tracked []model.City, query string) []model.City {
	skip := make(map[string]bool, len(tracked))
	for _, t := range tracked {
		skip[t.ID] = true
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.City
	for _, city := range c.cities {
		if skip[city.ID] {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(city.Label()), q) {
			continue
		}
		out = append(out, city)
	}
	return out
}
