// Package common holds what the HTTP handlers share: the service they call
// and the JSON response helpers.
package common

import (
	"context"

	"github.com/ustrahlendorf/web-form-datacollection/internal/iot"
)

// Service is the subset of vicare.Client the handlers use
type Service interface {
	ResolveEquipmentAndToken(ctx context.Context) (*iot.Equipment, error)
	FeatureValue(ctx context.Context, path string, eq *iot.Equipment, cached []iot.Feature) (any, error)
	HeatingValues(ctx context.Context, eq *iot.Equipment) (*iot.HeatingValues, error)
	CheckHealth(ctx context.Context) error
}
