// Package tokencache persists the bearer token and resolved equipment ids between runs
package tokencache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Cache timing
const (
	// ExpiryBuffer is subtracted from expires_at when deciding freshness
	ExpiryBuffer = 300 * time.Second

	// DefaultTokenLifetime applies when the provider omits expires_in on a full grant
	DefaultTokenLifetime = time.Hour
)

// ErrInvalidRecord is returned by stores when persisted data cannot be used
var ErrInvalidRecord = errors.New("invalid token cache record")

// Record is the persisted cache entry. ExpiresAt is in epoch seconds.
type Record struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	ExpiresAt      int64  `json:"expires_at"`
	InstallationID string `json:"installation_id,omitempty"`
	GatewaySerial  string `json:"gateway_serial,omitempty"`
	DeviceID       string `json:"device_id,omitempty"`
}

// Fresh reports whether the access token can be reused at now
func (r *Record) Fresh(now time.Time) bool {
	return now.Unix() < r.ExpiresAt-int64(ExpiryBuffer/time.Second)
}

// HasEquipment reports whether all three equipment ids are cached
func (r *Record) HasEquipment() bool {
	return r.InstallationID != "" && r.GatewaySerial != "" && r.DeviceID != ""
}

// SetEquipment stores resolved ids on the record
func (r *Record) SetEquipment(installationID, gatewaySerial, deviceID string) {
	r.InstallationID = installationID
	r.GatewaySerial = gatewaySerial
	r.DeviceID = deviceID
}

// Expiry returns ExpiresAt as a time
func (r *Record) Expiry() time.Time {
	return time.Unix(r.ExpiresAt, 0)
}

// storedRecord is the lenient on-disk shape: expires_at may be written as
// an integer or a float, and required keys are detected as absent.
type storedRecord struct {
	AccessToken    *string      `json:"access_token"`
	RefreshToken   string       `json:"refresh_token"`
	ExpiresAt      *json.Number `json:"expires_at"`
	InstallationID any          `json:"installation_id"`
	GatewaySerial  any          `json:"gateway_serial"`
	DeviceID       any          `json:"device_id"`
}

// decodeRecord parses persisted bytes. Records lacking access_token or
// expires_at are rejected with ErrInvalidRecord.
func decodeRecord(data []byte) (*Record, error) {
	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if stored.AccessToken == nil || *stored.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access_token", ErrInvalidRecord)
	}
	if stored.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expires_at", ErrInvalidRecord)
	}

	expiresAt, err := stored.ExpiresAt.Int64()
	if err != nil {
		f, ferr := stored.ExpiresAt.Float64()
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: expires_at %q is not a number", ErrInvalidRecord, stored.ExpiresAt.String())
		}
		expiresAt = int64(f)
	}

	return &Record{
		AccessToken:    *stored.AccessToken,
		RefreshToken:   stored.RefreshToken,
		ExpiresAt:      expiresAt,
		InstallationID: idString(stored.InstallationID),
		GatewaySerial:  idString(stored.GatewaySerial),
		DeviceID:       idString(stored.DeviceID),
	}, nil
}

// idString accepts ids persisted as strings or numbers
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		if id == math.Trunc(id) && !math.IsInf(id, 0) {
			return fmt.Sprintf("%.0f", id)
		}
	}
	return ""
}

func encodeRecord(r *Record) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling token record: %w", err)
	}
	return data, nil
}
