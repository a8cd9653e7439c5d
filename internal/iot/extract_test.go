package iot

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func int64Ptr(v int64) *int64 { return &v }

func feature(name string, props map[string]any) *Feature {
	return &Feature{Feature: name, IsEnabled: true, Properties: props}
}

func TestExtractorFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "heating.circuits.0.sensors.temperature.supply", want: "temperature"},
		{path: "heating.sensors.temperature.outside", want: "temperature"},
		{path: "heating.dhw.temperature.main", want: "temperature"},
		{path: "heating.gas.consumption.heating", want: "consumption"},
		{path: "heating.power.consumption.total", want: "consumption"},
		{path: "heating.heat.production.summary", want: "consumption"},
		{path: "heating.burners.0.statistics", want: "burner statistics"},
		{path: "heating.burners.0", want: "raw"},
		{path: "heating.circuits.0.operating.modes.active", want: "raw"},
		// temperature wins over consumption when both match
		{path: "heating.consumption.temperature.x", want: "temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if _, got := ExtractorFor(tt.path); got != tt.want {
				t.Errorf("ExtractorFor(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtractTemperature(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]any
		want  any
	}{
		{
			name:  "value object",
			props: map[string]any{"value": map[string]any{"type": "number", "value": json.Number("44.2"), "unit": "celsius"}},
			want:  44.2,
		},
		{
			name:  "scalar value",
			props: map[string]any{"value": json.Number("7")},
			want:  7.0,
		},
		{
			name:  "temperature scalar wins over value",
			props: map[string]any{"temperature": json.Number("21.5"), "value": json.Number("99")},
			want:  21.5,
		},
		{
			name:  "null temperature does not fall back to value",
			props: map[string]any{"temperature": nil, "value": json.Number("21")},
			want:  nil,
		},
		{
			name:  "temperature object",
			props: map[string]any{"temperature": map[string]any{"value": json.Number("19")}},
			want:  19.0,
		},
		{
			name:  "nested temperature object",
			props: map[string]any{"temperature": map[string]any{"value": map[string]any{"value": json.Number("18.5")}}},
			want:  18.5,
		},
		{
			name:  "numeric string",
			props: map[string]any{"value": map[string]any{"value": "12.25"}},
			want:  12.25,
		},
		{
			name:  "non-numeric string",
			props: map[string]any{"value": map[string]any{"value": "n/a"}},
			want:  nil,
		},
		{
			name:  "boolean",
			props: map[string]any{"value": true},
			want:  nil,
		},
		{
			name:  "no properties",
			props: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTemperature(feature("heating.sensors.temperature.outside", tt.props))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractTemperature() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractBurnerStatistics(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]any
		want  BurnerStatistics
	}{
		{
			name: "value objects",
			props: map[string]any{
				"hours":  map[string]any{"type": "number", "value": json.Number("1234.7"), "unit": "hour"},
				"starts": map[string]any{"type": "number", "value": json.Number("5678")},
			},
			want: BurnerStatistics{Betriebsstunden: int64Ptr(1234), Starts: int64Ptr(5678)},
		},
		{
			name:  "scalars and strings",
			props: map[string]any{"hours": json.Number("10"), "starts": "20"},
			want:  BurnerStatistics{Betriebsstunden: int64Ptr(10), Starts: int64Ptr(20)},
		},
		{
			name:  "missing starts",
			props: map[string]any{"hours": json.Number("10")},
			want:  BurnerStatistics{Betriebsstunden: int64Ptr(10)},
		},
		{
			name:  "garbage",
			props: map[string]any{"hours": "lots", "starts": []any{}},
			want:  BurnerStatistics{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractBurnerStatistics(feature("heating.burners.0.statistics", tt.props))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractBurnerStatistics() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractConsumptionVerbatim(t *testing.T) {
	props := map[string]any{
		"day":  map[string]any{"type": "array", "value": []any{json.Number("1.5"), json.Number("2.5")}},
		"week": map[string]any{"type": "array", "value": []any{}},
	}
	got := ExtractConsumption(feature("heating.gas.consumption.heating", props))
	if diff := cmp.Diff(props, got); diff != "" {
		t.Errorf("ExtractConsumption() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFeatureValueNilAndDisabled(t *testing.T) {
	paths := []string{
		"heating.circuits.0.sensors.temperature.supply",
		"heating.gas.consumption.heating",
		"heating.burners.0.statistics",
		"heating.circuits.0.operating.modes.active",
	}
	disabled := &Feature{Feature: "x", IsEnabled: false, Properties: map[string]any{"value": json.Number("1")}}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			if got := ExtractFeatureValue(path, nil); got != nil {
				t.Errorf("ExtractFeatureValue(nil) = %v, want nil", got)
			}
			if got := ExtractFeatureValue(path, disabled); got != nil {
				t.Errorf("ExtractFeatureValue(disabled) = %v, want nil", got)
			}
		})
	}
}

func TestExtractRawPropertiesEmpty(t *testing.T) {
	got := ExtractFeatureValue("heating.boiler.serial", feature("heating.boiler.serial", nil))
	if diff := cmp.Diff(map[string]any{}, got); diff != "" {
		t.Errorf("raw extraction of a feature without properties (-want +got):\n%s", diff)
	}
}

func TestFeatureFromItemDefaultsEnabled(t *testing.T) {
	f := featureFromItem(map[string]any{"feature": "heating.boiler.serial"})
	if !f.IsEnabled {
		t.Error("missing isEnabled should default to true")
	}
	f = featureFromItem(map[string]any{"feature": "heating.boiler.serial", "isEnabled": false})
	if f.IsEnabled {
		t.Error("explicit isEnabled=false ignored")
	}
}
