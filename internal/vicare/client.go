// Package vicare ties the token cache and the IoT client together into the
// operations callers use: resolve equipment, read features, read heating values.
package vicare

import (
	"context"
	"fmt"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/iot"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
	"github.com/ustrahlendorf/web-form-datacollection/internal/tokencache"
	"github.com/ustrahlendorf/web-form-datacollection/internal/validation"
)

// Client is the entry point for one account
type Client struct {
	tokens *tokencache.Manager
	iot    *iot.Client
	log    *logger.Logger
}

// New creates a Client
func New(tokens *tokencache.Manager, iotClient *iot.Client, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{tokens: tokens, iot: iotClient, log: log}
}

// ResolveEquipmentAndToken returns a valid access token and the equipment ids.
// Ids cached alongside the token are reused; otherwise they are resolved and
// written back to the cache.
func (c *Client) ResolveEquipmentAndToken(ctx context.Context) (*iot.Equipment, error) {
	rec, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining access token: %w", err)
	}

	if rec.HasEquipment() {
		c.log.Debugw("using cached equipment ids", "installation_id", rec.InstallationID)
		return &iot.Equipment{
			AccessToken:    rec.AccessToken,
			InstallationID: rec.InstallationID,
			GatewaySerial:  rec.GatewaySerial,
			DeviceID:       rec.DeviceID,
		}, nil
	}

	eq, err := c.iot.ResolveEquipment(ctx, rec.AccessToken)
	if err != nil {
		return nil, err
	}

	rec.SetEquipment(eq.InstallationID, eq.GatewaySerial, eq.DeviceID)
	_ = c.tokens.Save(ctx, rec)

	return eq, nil
}

// DeviceFeatures fetches every feature of the device
func (c *Client) DeviceFeatures(ctx context.Context, eq *iot.Equipment) ([]iot.Feature, error) {
	return c.iot.DeviceFeatures(ctx, eq)
}

// FeatureValue returns the extracted value of one feature. A non-nil cached
// list is searched instead of fetching.
func (c *Client) FeatureValue(ctx context.Context, path string, eq *iot.Equipment, cached []iot.Feature) (any, error) {
	path = validation.NormalizeFeaturePath(path)
	if err := validation.ValidateFeaturePath(path); err != nil {
		return nil, fmt.Errorf("%w: %w", apierr.ErrInvalidArgument, err)
	}
	return c.iot.FeatureValue(ctx, eq, path, cached)
}

// HeatingValues returns the heating snapshot from a single bulk fetch
func (c *Client) HeatingValues(ctx context.Context, eq *iot.Equipment) (*iot.HeatingValues, error) {
	return c.iot.HeatingValues(ctx, eq)
}

// CheckHealth checks the token cache backend
func (c *Client) CheckHealth(ctx context.Context) error {
	return c.tokens.CheckHealth(ctx)
}
