package test

import (
	"context"

	"github.com/ustrahlendorf/web-form-datacollection/cmd/vicare-telemetry/handlers/common"
	"github.com/ustrahlendorf/web-form-datacollection/internal/iot"
)

// MockService implements common.Service for handler tests
type MockService struct {
	ResolveFunc       func(ctx context.Context) (*iot.Equipment, error)
	FeatureValueFunc  func(ctx context.Context, path string, eq *iot.Equipment, cached []iot.Feature) (any, error)
	HeatingValuesFunc func(ctx context.Context, eq *iot.Equipment) (*iot.HeatingValues, error)
	CheckHealthFunc   func(ctx context.Context) error
}

// Ensure MockService implements Service interface
var _ common.Service = (*MockService)(nil)

// Equipment is returned by ResolveEquipmentAndToken when ResolveFunc is unset
var Equipment = &iot.Equipment{
	AccessToken:    "AT",
	InstallationID: "194640",
	GatewaySerial:  "7571381681420106",
	DeviceID:       "0",
}

// ResolveEquipmentAndToken implements common.Service
func (m *MockService) ResolveEquipmentAndToken(ctx context.Context) (*iot.Equipment, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx)
	}
	return Equipment, nil
}

// FeatureValue implements common.Service
func (m *MockService) FeatureValue(ctx context.Context, path string, eq *iot.Equipment, cached []iot.Feature) (any, error) {
	if m.FeatureValueFunc != nil {
		return m.FeatureValueFunc(ctx, path, eq, cached)
	}
	return nil, nil
}

// HeatingValues implements common.Service
func (m *MockService) HeatingValues(ctx context.Context, eq *iot.Equipment) (*iot.HeatingValues, error) {
	if m.HeatingValuesFunc != nil {
		return m.HeatingValuesFunc(ctx, eq)
	}
	return &iot.HeatingValues{}, nil
}

// CheckHealth implements common.Service
func (m *MockService) CheckHealth(ctx context.Context) error {
	if m.CheckHealthFunc != nil {
		return m.CheckHealthFunc(ctx)
	}
	return nil
}
