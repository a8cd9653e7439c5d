package iot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
)

// Equipment identifies one device together with the token used to reach it
type Equipment struct {
	AccessToken    string `json:"-"`
	InstallationID string `json:"installation_id"`
	GatewaySerial  string `json:"gateway_serial"`
	DeviceID       string `json:"device_id"`
}

// InstallationID returns the id of the caller's first installation
func (c *Client) InstallationID(ctx context.Context, accessToken string) (string, error) {
	endpoint := c.InstallationsURL()
	items, err := c.getList(ctx, endpoint, accessToken)
	if err != nil {
		return "", err
	}
	return firstField(items, endpoint, "installations", "id")
}

// GatewaySerial returns the serial of the caller's first gateway
func (c *Client) GatewaySerial(ctx context.Context, accessToken string) (string, error) {
	endpoint := c.GatewaysURL()
	items, err := c.getList(ctx, endpoint, accessToken)
	if err != nil {
		return "", err
	}
	return firstField(items, endpoint, "gateways", "serial")
}

// DeviceID returns the id of the first device behind the gateway
func (c *Client) DeviceID(ctx context.Context, accessToken, installationID, gatewaySerial string) (string, error) {
	endpoint := c.DevicesURL(installationID, gatewaySerial)
	items, err := c.getList(ctx, endpoint, accessToken)
	if err != nil {
		return "", err
	}
	return firstField(items, endpoint, "devices", "id")
}

// ResolveEquipment walks installations, gateways and devices in order and
// picks the first element of each.
func (c *Client) ResolveEquipment(ctx context.Context, accessToken string) (*Equipment, error) {
	installationID, err := c.InstallationID(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("resolving installation: %w", err)
	}

	gatewaySerial, err := c.GatewaySerial(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("resolving gateway: %w", err)
	}

	deviceID, err := c.DeviceID(ctx, accessToken, installationID, gatewaySerial)
	if err != nil {
		return nil, fmt.Errorf("resolving device: %w", err)
	}

	c.log.Infow("equipment resolved",
		"installation_id", installationID,
		"gateway_serial", gatewaySerial,
		"device_id", deviceID)

	return &Equipment{
		AccessToken:    accessToken,
		InstallationID: installationID,
		GatewaySerial:  gatewaySerial,
		DeviceID:       deviceID,
	}, nil
}

// firstField takes field from the first item, coercing numeric ids to strings
func firstField(items []map[string]any, endpoint, what, field string) (string, error) {
	if len(items) == 0 {
		return "", &apierr.ResponseError{
			Kind:   apierr.ErrEmptyResult,
			URL:    endpoint,
			Detail: fmt.Sprintf("no %s returned", what),
		}
	}

	id, ok := idValue(items[0][field])
	if !ok {
		return "", &apierr.ResponseError{
			Kind:   apierr.ErrMissingField,
			URL:    endpoint,
			Detail: fmt.Sprintf("first item in %s has no usable %q", what, field),
		}
	}
	return id, nil
}

func idValue(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case json.Number:
		if _, err := id.Int64(); err != nil {
			return "", false
		}
		return id.String(), true
	}
	return "", false
}
