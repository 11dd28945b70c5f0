package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultRadiusKm applies to airports without a radius entry.
const DefaultRadiusKm = 50.0

type Airport struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
}

// Catalog is the fixed list of served airports plus the drop-off radius
// table. Radii are looked up by display name, not by id.
type Catalog struct {
	airports []Airport
	radiusKm map[string]float64
}

var defaultAirports = []Airport{
	{ID: "IST", Name: "Istanbul Airport", Query: "Istanbul Airport, Turkey"},
	{ID: "SAW", Name: "Sabiha Gökçen International Airport", Query: "Sabiha Gökçen International Airport, Turkey"},
	{ID: "ADB", Name: "Izmir Adnan Menderes Airport", Query: "Izmir Adnan Menderes Airport, Turkey"},
	{ID: "BJV", Name: "Milas–Bodrum Airport", Query: "Milas–Bodrum Airport, Turkey"},
	{ID: "DLM", Name: "Dalaman Airport", Query: "Dalaman Airport, Turkey"},
	{ID: "AYT", Name: "Antalya Airport", Query: "Antalya Airport, Turkey"},
	{ID: "ASR", Name: "Kayseri Erkilet Airport", Query: "Kayseri Erkilet Airport, Turkey"},
	{ID: "NAV", Name: "Nevşehir Kapadokya Airport", Query: "Nevşehir Kapadokya Airport, Turkey"},
	{ID: "ESB", Name: "Esenboğa International Airport", Query: "Esenboğa International Airport, Ankara, Turkey"},
	{ID: "DNZ", Name: "Denizli Çardak Airport", Query: "Denizli Çardak Airport, Turkey"},
	{ID: "GAP", Name: "Şanlıurfa GAP Airport", Query: "Şanlıurfa GAP Airport, Turkey"},
	{ID: "TZX", Name: "Trabzon Airport", Query: "Trabzon Airport, Turkey"},
}

// DefaultRadii is keyed by the catalog display names above.
func DefaultRadii() map[string]float64 {
	return map[string]float64{
		"Istanbul Airport":                    70,
		"Sabiha Gökçen International Airport": 70,
		"Izmir Adnan Menderes Airport":        180,
		"Milas–Bodrum Airport":                70,
		"Dalaman Airport":                     70,
		"Antalya Airport":                     100,
		"Kayseri Erkilet Airport":             150,
		"Nevşehir Kapadokya Airport":          70,
		"Esenboğa International Airport":      70,
		"Denizli Çardak Airport":              100,
		"Şanlıurfa GAP Airport":               50,
		"Trabzon Airport":                     50,
	}
}

// New returns the default catalog with overrides merged into the default
// radius table. An override of zero or less sends that airport to
// DefaultRadiusKm.
func New(overrides map[string]float64) *Catalog {
	radii := DefaultRadii()
	for name, km := range overrides {
		radii[name] = km
	}
	airports := make([]Airport, len(defaultAirports))
	copy(airports, defaultAirports)
	return &Catalog{airports: airports, radiusKm: radii}
}

func (c *Catalog) Airports() []Airport {
	out := make([]Airport, len(c.airports))
	copy(out, c.airports)
	return out
}

func (c *Catalog) Lookup(id string) (Airport, bool) {
	for _, a := range c.airports {
		if a.ID == id {
			return a, true
		}
	}
	return Airport{}, false
}

// RadiusKm returns the maximum drop-off driving distance for an airport
// display name. Names must match exactly.
func (c *Catalog) RadiusKm(name string) float64 {
	if r, ok := c.radiusKm[name]; ok && r > 0 {
		return r
	}
	return DefaultRadiusKm
}

// Unmapped lists catalog airports that fall back to DefaultRadiusKm.
func (c *Catalog) Unmapped() []Airport {
	var out []Airport
	for _, a := range c.airports {
		if r, ok := c.radiusKm[a.Name]; !ok || r <= 0 {
			out = append(out, a)
		}
	}
	return out
}

// ParseRadii parses "Name=km;Name=km". Semicolons separate entries because
// airport names may contain commas.
func ParseRadii(v string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, km, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("radius entry %q: missing '='", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(km), 64)
		if err != nil {
			return nil, fmt.Errorf("radius entry %q: %w", part, err)
		}
		if f <= 0 {
			return nil, fmt.Errorf("radius entry %q: must be > 0", part)
		}
		out[strings.TrimSpace(name)] = f
	}
	return out, nil
}
