package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"gopkg.in/yaml.v3"
)

// Plan is the ordered list of providers ingested by one refresh.
type Plan []domain.ProviderConfig

type planFile struct {
	Providers Plan `yaml:"providers"`
}

// defaultStation and the products below mirror the dashboard's initial load.
const defaultStation = "8723214"

var defaultProducts = []string{"water_temperature", "air_temperature", "water_level", "wind"}

// DefaultPlan ingests the default NOAA station products for the first days
// of 2025.
func DefaultPlan() Plan {
	plan := make(Plan, 0, len(defaultProducts))
	for _, product := range defaultProducts {
		plan = append(plan, domain.ProviderConfig{
			Provider: "noaa",
			Payload: map[string]any{
				"station":    defaultStation,
				"product":    product,
				"begin_date": "20250101",
				"end_date":   "20250105",
			},
		})
	}
	return plan
}

// LoadPlan reads a refresh plan from a YAML file. An empty path yields
// DefaultPlan.
func LoadPlan(path string) (Plan, error) {
	if path == "" {
		return DefaultPlan(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a YAML document of the form
//
//	providers:
//	  - provider: obis
//	    payload: {endpoint: occurrence, params: {scientificname: Thunnus albacares}}
func ParsePlan(data []byte) (Plan, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(f.Providers) == 0 {
		return nil, errors.New("plan lists no providers")
	}
	for i, p := range f.Providers {
		if strings.TrimSpace(p.Provider) == "" {
			return nil, fmt.Errorf("plan entry %d: provider is required", i)
		}
		if p.Payload == nil {
			f.Providers[i].Payload = map[string]any{}
		}
	}
	return f.Providers, nil
}
