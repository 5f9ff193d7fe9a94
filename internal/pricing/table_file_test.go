package pricing

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return path
}

func TestLoadRateTable_EmptyPathUsesBuiltIn(t *testing.T) {
	table, err := LoadRateTable("")
	if err != nil {
		t.Fatalf("LoadRateTable: %v", err)
	}
	if len(table.Trades()) != len(defaultRates) {
		t.Fatalf("got %d trades", len(table.Trades()))
	}
}

func TestLoadRateTable_ReadsYAML(t *testing.T) {
	path := writeTable(t, `
sizeFactors: {small: 1, medium: 2, large: 4, xlarge: 8}
rates:
  - {trade: Flooring, materials: 300, labor: 200, equipment: 50}
bands:
  - {trade: flooring, size: medium, band: {min: 900, avg: 1100, max: 1400}}
`)

	table, err := LoadRateTable(path)
	if err != nil {
		t.Fatalf("LoadRateTable: %v", err)
	}

	got, err := table.Resolve("flooring", "medium")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	nearlyEqual(t, "materials", got.Materials, 600)
	nearlyEqual(t, "labor", got.Labor, 400)
	nearlyEqual(t, "equipment", got.Equipment, 100)
	if got.SyntheticBand || got.Band.Avg != 1100 {
		t.Fatalf("band = %+v synthetic=%v", got.Band, got.SyntheticBand)
	}
}

func TestLoadRateTable_Errors(t *testing.T) {
	tests := map[string]string{
		"malformed": "rates: [",
		"no rates":  "sizeFactors: {small: 1, medium: 2, large: 3, xlarge: 4}\n",
		"bad factors": `
sizeFactors: {small: 1, medium: 0.5, large: 3, xlarge: 4}
rates:
  - {trade: hvac, materials: 1, labor: 1}
`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadRateTable(writeTable(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := LoadRateTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
