package iot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
)

// Feature is one named device datapoint
type Feature struct {
	Feature    string         `json:"feature"`
	IsEnabled  bool           `json:"isEnabled"`
	Properties map[string]any `json:"properties,omitempty"`
	Commands   map[string]any `json:"commands,omitempty"`
}

// featureFromItem converts a normalized item. A missing isEnabled counts as enabled.
func featureFromItem(item map[string]any) Feature {
	f := Feature{IsEnabled: true}
	if name, ok := item["feature"].(string); ok {
		f.Feature = name
	}
	if enabled, ok := item["isEnabled"].(bool); ok {
		f.IsEnabled = enabled
	}
	if props, ok := item["properties"].(map[string]any); ok {
		f.Properties = props
	}
	if cmds, ok := item["commands"].(map[string]any); ok {
		f.Commands = cmds
	}
	return f
}

// DeviceFeatures fetches every feature of the device in one request
func (c *Client) DeviceFeatures(ctx context.Context, eq *Equipment) ([]Feature, error) {
	items, err := c.getList(ctx, c.FeaturesURL(eq), eq.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetching device features: %w", err)
	}

	features := make([]Feature, 0, len(items))
	for _, item := range items {
		features = append(features, featureFromItem(item))
	}

	c.log.Debugw("device features fetched", "count", len(features))
	return features, nil
}

// SingleFeature fetches one feature. It returns nil, nil when the feature
// does not exist (404), is disabled, or the response holds no items.
func (c *Client) SingleFeature(ctx context.Context, eq *Equipment, path string) (*Feature, error) {
	items, err := c.getList(ctx, c.FeatureURL(eq, path), eq.AccessToken)
	if err != nil {
		var httpErr *apierr.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			c.log.Debugw("feature not found", "feature", path)
			return nil, nil
		}
		return nil, fmt.Errorf("fetching feature %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	f := featureFromItem(items[0])
	if !f.IsEnabled {
		return nil, nil
	}
	return &f, nil
}

// FindFeature looks a feature up by name in a fetched list. Disabled
// features are treated as absent.
func FindFeature(features []Feature, path string) *Feature {
	for i := range features {
		if features[i].Feature == path {
			if !features[i].IsEnabled {
				return nil
			}
			return &features[i]
		}
	}
	return nil
}

// FeatureData returns the feature from cached when it is non-nil, and
// fetches it otherwise.
func (c *Client) FeatureData(ctx context.Context, eq *Equipment, path string, cached []Feature) (*Feature, error) {
	if cached != nil {
		return FindFeature(cached, path), nil
	}
	return c.SingleFeature(ctx, eq, path)
}

// FeatureValue fetches a feature and runs the extractor matching its path
func (c *Client) FeatureValue(ctx context.Context, eq *Equipment, path string, cached []Feature) (any, error) {
	f, err := c.FeatureData(ctx, eq, path, cached)
	if err != nil {
		return nil, err
	}
	return ExtractFeatureValue(path, f), nil
}
