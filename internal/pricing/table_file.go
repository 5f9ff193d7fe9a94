package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk form of a RateTable.
//
//	sizeFactors: {small: 1, medium: 2.5, large: 5, xlarge: 10}
//	rates:
//	  - {trade: hvac, materials: 350, labor: 500}
//	bands:
//	  - {trade: hvac, size: small, band: {min: 850, avg: 1150, max: 1500}}
type tableFile struct {
	SizeFactors map[SizeBucket]float64 `yaml:"sizeFactors"`
	Rates       []TradeRate            `yaml:"rates"`
	Bands       []BandEntry            `yaml:"bands"`
}

// LoadRateTable reads a YAML rate table. An empty path returns the built-in table.
func LoadRateTable(path string) (*RateTable, error) {
	if path == "" {
		return DefaultRateTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}

	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rate table: %w", err)
	}
	if len(f.Rates) == 0 {
		return nil, fmt.Errorf("parse rate table: no rates in %s", path)
	}

	t, err := NewRateTable(f.Rates, f.Bands, f.SizeFactors)
	if err != nil {
		return nil, fmt.Errorf("build rate table: %w", err)
	}
	return t, nil
}
