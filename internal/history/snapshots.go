package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ustrahlendorf/web-form-datacollection/internal/iot"
)

const timeLayout = time.RFC3339

// Snapshot is a stored heating snapshot
type Snapshot struct {
	ID             string `json:"id"`
	InstallationID string `json:"installation_id"`
	GatewaySerial  string `json:"gateway_serial"`
	DeviceID       string `json:"device_id"`
	iot.HeatingValues
}

// SnapshotSQLite persists snapshots
type SnapshotSQLite struct {
	db *sql.DB
}

// NewSnapshotSQLite creates a repository on an opened database
func NewSnapshotSQLite(db *sql.DB) *SnapshotSQLite {
	return &SnapshotSQLite{db: db}
}

// Append stores the values fetched for eq and returns the new snapshot id
func (r *SnapshotSQLite) Append(ctx context.Context, eq *iot.Equipment, v *iot.HeatingValues) (string, error) {
	id := uuid.NewString()
	fetchedAt := v.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO heating_snapshots (id, installation_id, gateway_serial, device_id, fetched_at,
			gas_m3_today, gas_m3_yesterday, betriebsstunden, starts, supply_temp, outside_temp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		eq.InstallationID,
		eq.GatewaySerial,
		eq.DeviceID,
		fetchedAt.UTC().Format(timeLayout),
		v.GasConsumptionM3Today,
		v.GasConsumptionM3Yesterday,
		v.Betriebsstunden,
		v.Starts,
		v.SupplyTemp,
		v.OutsideTemp,
	)
	if err != nil {
		return "", fmt.Errorf("inserting heating snapshot: %w", err)
	}
	return id, nil
}

// Latest returns the newest snapshot for the device, or nil when none exists
func (r *SnapshotSQLite) Latest(ctx context.Context, eq *iot.Equipment) (*Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, installation_id, gateway_serial, device_id, fetched_at,
			gas_m3_today, gas_m3_yesterday, betriebsstunden, starts, supply_temp, outside_temp
		FROM heating_snapshots
		WHERE installation_id = ? AND gateway_serial = ? AND device_id = ?
		ORDER BY fetched_at DESC
		LIMIT 1
	`, eq.InstallationID, eq.GatewaySerial, eq.DeviceID)

	s, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return s, nil
}

// List returns snapshots for the device within [from, to], oldest first.
// Zero bounds are open.
func (r *SnapshotSQLite) List(ctx context.Context, eq *iot.Equipment, from, to time.Time) ([]Snapshot, error) {
	conds := []string{"installation_id = ?", "gateway_serial = ?", "device_id = ?"}
	args := []any{eq.InstallationID, eq.GatewaySerial, eq.DeviceID}

	if !from.IsZero() {
		conds = append(conds, "fetched_at >= ?")
		args = append(args, from.UTC().Format(timeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "fetched_at <= ?")
		args = append(args, to.UTC().Format(timeLayout))
	}

	q := `SELECT id, installation_id, gateway_serial, device_id, fetched_at,
			gas_m3_today, gas_m3_yesterday, betriebsstunden, starts, supply_temp, outside_temp
		FROM heating_snapshots WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY fetched_at ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]Snapshot, 0, 64)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var (
		s             Snapshot
		fetchedAt     string
		gasToday      sql.NullFloat64
		gasYesterday  sql.NullFloat64
		hours, starts sql.NullInt64
		supply        sql.NullFloat64
		outside       sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &s.InstallationID, &s.GatewaySerial, &s.DeviceID, &fetchedAt,
		&gasToday, &gasYesterday, &hours, &starts, &supply, &outside); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing fetched_at %q: %w", fetchedAt, err)
	}
	s.FetchedAt = t.UTC()
	s.GasConsumptionM3Today = nullFloat(gasToday)
	s.GasConsumptionM3Yesterday = nullFloat(gasYesterday)
	s.Betriebsstunden = nullInt(hours)
	s.Starts = nullInt(starts)
	s.SupplyTemp = nullFloat(supply)
	s.OutsideTemp = nullFloat(outside)
	return &s, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}
