package config

import "sort"

// Presets are named tiv grids for common covariate scalings.
var Presets = map[string]*GridConfig{
	"unit": {
		From: 0, To: 1, Length: 11,
	},
	"standardized": {
		From: -2, To: 2, Length: 9,
	},
	"percent": {
		From: 0, To: 100, Length: 21,
	},
	"binary": {
		Values: []float64{0, 1},
	},
}

func GetPreset(name string) *GridConfig {
	preset, ok := Presets[name]
	if !ok {
		return nil
	}
	cp := *preset
	return &cp
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
