package iot

import (
	"context"
	"time"
)

// Feature paths read for a heating snapshot
const (
	GasConsumptionFeature     = "heating.gas.consumption.heating"
	BurnerStatisticsFeature   = "heating.burners.0.statistics"
	SupplyTemperatureFeature  = "heating.circuits.0.sensors.temperature.supply"
	OutsideTemperatureFeature = "heating.sensors.temperature.outside"
)

// HeatingValues is a point-in-time heating snapshot. Any field may be nil.
type HeatingValues struct {
	GasConsumptionM3Today     *float64  `json:"gas_consumption_m3_today"`
	GasConsumptionM3Yesterday *float64  `json:"gas_consumption_m3_yesterday"`
	Betriebsstunden           *int64    `json:"betriebsstunden"`
	Starts                    *int64    `json:"starts"`
	SupplyTemp                *float64  `json:"supply_temp"`
	OutsideTemp               *float64  `json:"outside_temp"`
	FetchedAt                 time.Time `json:"fetched_at"`
}

// HeatingValues fetches all device features once and derives the snapshot from them
func (c *Client) HeatingValues(ctx context.Context, eq *Equipment) (*HeatingValues, error) {
	features, err := c.DeviceFeatures(ctx, eq)
	if err != nil {
		return nil, err
	}
	return AggregateHeatingValues(features, c.now()), nil
}

// AggregateHeatingValues extracts the snapshot fields from a feature list
func AggregateHeatingValues(features []Feature, now time.Time) *HeatingValues {
	values := &HeatingValues{FetchedAt: now.UTC()}

	if props, ok := ExtractFeatureValue(GasConsumptionFeature, FindFeature(features, GasConsumptionFeature)).(map[string]any); ok {
		values.GasConsumptionM3Today, values.GasConsumptionM3Yesterday = dailyPair(props)
	}

	if stats, ok := ExtractFeatureValue(BurnerStatisticsFeature, FindFeature(features, BurnerStatisticsFeature)).(BurnerStatistics); ok {
		values.Betriebsstunden = stats.Betriebsstunden
		values.Starts = stats.Starts
	}

	values.SupplyTemp = floatValue(ExtractFeatureValue(SupplyTemperatureFeature, FindFeature(features, SupplyTemperatureFeature)))
	values.OutsideTemp = floatValue(ExtractFeatureValue(OutsideTemperatureFeature, FindFeature(features, OutsideTemperatureFeature)))

	return values
}

// dailyPair reads day.value[0] (today) and day.value[1] (yesterday)
func dailyPair(props map[string]any) (today, yesterday *float64) {
	day, ok := props["day"].(map[string]any)
	if !ok {
		return nil, nil
	}
	series, ok := day["value"].([]any)
	if !ok {
		return nil, nil
	}
	if len(series) > 0 {
		if v, ok := toFloat(series[0]); ok {
			today = &v
		}
	}
	if len(series) > 1 {
		if v, ok := toFloat(series[1]); ok {
			yesterday = &v
		}
	}
	return today, yesterday
}

func floatValue(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
