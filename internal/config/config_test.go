package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DataDir != DefaultDataDir {
		t.Errorf("expected data dir %s, got %s", DefaultDataDir, cfg.DataDir)
	}
	if cfg.Grid.Length <= 0 {
		t.Error("grid length should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	grid := GetPreset("standardized")
	if grid == nil {
		t.Fatal("expected preset, got nil")
	}
	if grid.From != -2 || grid.To != 2 {
		t.Errorf("expected span [-2, 2], got [%f, %f]", grid.From, grid.To)
	}

	grid.Length = 100
	if Presets["standardized"].Length == 100 {
		t.Error("GetPreset returned shared preset")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if grid := GetPreset("nonexistent"); grid != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Errorf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("presets not sorted: %v", presets)
		}
	}
}

func TestGridValues(t *testing.T) {
	tests := []struct {
		name     string
		grid     GridConfig
		expected []float64
	}{
		{"span", GridConfig{From: 0, To: 1, Length: 5}, []float64{0, 0.25, 0.5, 0.75, 1}},
		{"single", GridConfig{From: 3, To: 3, Length: 1}, []float64{3}},
		{"explicit", GridConfig{Values: []float64{2, -1}, Length: 7}, []float64{2, -1}},
		{"descending", GridConfig{From: 1, To: -1, Length: 3}, []float64{1, 0, -1}},
		{"empty", GridConfig{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.grid.Points()
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d values, got %v", len(tt.expected), got)
			}
			for i := range got {
				if math.Abs(got[i]-tt.expected[i]) > 1e-12 {
					t.Errorf("value %d: expected %f, got %f", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestGridValidate(t *testing.T) {
	if err := (GridConfig{Length: 0}).Validate(); err == nil {
		t.Error("expected error for zero length")
	}
	if err := (GridConfig{From: 1, To: 1, Length: 3}).Validate(); err == nil {
		t.Error("expected error for degenerate span")
	}
	if err := (GridConfig{Values: []float64{1}}).Validate(); err != nil {
		t.Errorf("explicit values should validate: %v", err)
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fchmm.yaml")

	cfg := DefaultConfig()
	cfg.Concurrency = 3
	cfg.Grid = GridConfig{Values: []float64{0, 10, 20}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", loaded.Concurrency)
	}
	if len(loaded.Grid.Values) != 3 {
		t.Errorf("expected 3 grid values, got %v", loaded.Grid.Values)
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fchmm.yaml")
	if err := os.WriteFile(path, []byte("concurrency: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Interval.Upper != DefaultUpper {
		t.Errorf("expected default upper %f, got %f", DefaultUpper, cfg.Interval.Upper)
	}
	if cfg.Grid.Length != DefaultGridLength {
		t.Errorf("expected default grid length %d, got %d", DefaultGridLength, cfg.Grid.Length)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fchmm.yaml")
	if err := os.WriteFile(path, []byte("interval: {lower: 0.9, upper: 0.1}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for inverted interval")
	}
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	fromData := []float64{5, 6, 7}

	withGrid := filepath.Join(dir, "grid.yaml")
	if err := os.WriteFile(withGrid, []byte("grid: {values: [1, 2]}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	withoutGrid := filepath.Join(dir, "plain.yaml")
	if err := os.WriteFile(withoutGrid, []byte("concurrency: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(withGrid)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.GridSet() {
		t.Error("grid from config file not marked as set")
	}
	if got := cfg.Sweep(fromData); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("config file grid should win over dataset values, got %v", got)
	}

	cfg, err = Load(withoutGrid)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.GridSet() {
		t.Error("grid marked as set without a grid section")
	}
	if got := cfg.Sweep(fromData); len(got) != 3 || got[0] != 5 {
		t.Errorf("expected dataset values, got %v", got)
	}

	cfg.SetGrid(*GetPreset("binary"))
	if got := cfg.Sweep(fromData); len(got) != 2 || got[1] != 1 {
		t.Errorf("preset grid should win over dataset values, got %v", got)
	}

	def := DefaultConfig()
	if got := def.Sweep(nil); len(got) != DefaultGridLength {
		t.Errorf("expected %d default values, got %d", DefaultGridLength, len(got))
	}
}
