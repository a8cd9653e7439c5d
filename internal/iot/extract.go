package iot

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Extractor turns an enabled feature into a typed value
type Extractor func(f *Feature) any

// BurnerStatistics is the value of a burner statistics feature
type BurnerStatistics struct {
	Betriebsstunden *int64 `json:"betriebsstunden"`
	Starts          *int64 `json:"starts"`
}

type extractorRule struct {
	name    string
	match   func(path string) bool
	extract Extractor
}

// extractorRules are tried in order; the first match wins
var extractorRules = []extractorRule{
	{
		name:    "temperature",
		match:   func(p string) bool { return strings.Contains(p, ".temperature") },
		extract: ExtractTemperature,
	},
	{
		name: "consumption",
		match: func(p string) bool {
			return strings.Contains(p, "consumption") || strings.Contains(p, "heat.production")
		},
		extract: ExtractConsumption,
	},
	{
		name: "burner statistics",
		match: func(p string) bool {
			return strings.Contains(p, "burners") && strings.Contains(p, "statistics")
		},
		extract: ExtractBurnerStatistics,
	},
}

// ExtractorFor returns the extractor for a feature path and its rule name
func ExtractorFor(path string) (Extractor, string) {
	for _, rule := range extractorRules {
		if rule.match(path) {
			return rule.extract, rule.name
		}
	}
	return ExtractRawProperties, "raw"
}

// ExtractFeatureValue dispatches on path. Nil or disabled features yield nil.
func ExtractFeatureValue(path string, f *Feature) any {
	if f == nil || !f.IsEnabled {
		return nil
	}
	extract, _ := ExtractorFor(path)
	return extract(f)
}

// ExtractTemperature reads properties.temperature, then properties.value.
// Each may be a scalar or a {"value": ...} object.
func ExtractTemperature(f *Feature) any {
	props := f.Properties
	if v, ok := props["temperature"]; ok {
		if obj, isObj := v.(map[string]any); isObj {
			if t, ok := scalarProperty(obj["value"]); ok {
				return t
			}
			return nil
		}
		if t, ok := toFloat(v); ok {
			return t
		}
		return nil
	}
	if t, ok := scalarProperty(props["value"]); ok {
		return t
	}
	return nil
}

// ExtractConsumption returns the properties unchanged
func ExtractConsumption(f *Feature) any {
	return propertiesOrEmpty(f)
}

// ExtractBurnerStatistics reads operating hours and starts as integers
func ExtractBurnerStatistics(f *Feature) any {
	return BurnerStatistics{
		Betriebsstunden: intProperty(f.Properties["hours"]),
		Starts:          intProperty(f.Properties["starts"]),
	}
}

// ExtractRawProperties returns the properties unchanged
func ExtractRawProperties(f *Feature) any {
	return propertiesOrEmpty(f)
}

func propertiesOrEmpty(f *Feature) map[string]any {
	if f.Properties == nil {
		return map[string]any{}
	}
	return f.Properties
}

// scalarProperty accepts a scalar or an object carrying "value"
func scalarProperty(v any) (float64, bool) {
	if obj, ok := v.(map[string]any); ok {
		return toFloat(obj["value"])
	}
	return toFloat(v)
}

func intProperty(v any) *int64 {
	f, ok := scalarProperty(v)
	if !ok {
		return nil
	}
	n := int64(f)
	return &n
}

// toFloat converts numbers and numeric strings. Booleans, NaN and
// infinities are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
