package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ustrahlendorf/web-form-datacollection/internal/iot"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
)

type heatingSource interface {
	ResolveEquipmentAndToken(ctx context.Context) (*iot.Equipment, error)
	HeatingValues(ctx context.Context, eq *iot.Equipment) (*iot.HeatingValues, error)
}

type snapshotSink interface {
	Append(ctx context.Context, eq *iot.Equipment, v *iot.HeatingValues) (string, error)
}

type valuePublisher interface {
	PublishHeatingValues(ctx context.Context, eq *iot.Equipment, v *iot.HeatingValues) error
}

// poller records a heating snapshot every interval. history and publisher
// are optional.
type poller struct {
	source    heatingSource
	history   snapshotSink
	publisher valuePublisher
	interval  time.Duration
	log       *logger.Logger
}

// run polls once immediately and then on every tick until ctx is done.
// A failed cycle is logged; the next tick retries from token resolution.
func (p *poller) run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Infow("polling heating values", "interval", p.interval)
	for {
		if err := p.cycle(ctx); err != nil && ctx.Err() == nil {
			p.log.Errorw("poll cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			p.log.Infow("polling stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// cycle fetches one snapshot, stores it and publishes it. Publishing is
// skipped when storing fails so both sinks see the same snapshots.
func (p *poller) cycle(ctx context.Context) error {
	eq, err := p.source.ResolveEquipmentAndToken(ctx)
	if err != nil {
		return err
	}

	values, err := p.source.HeatingValues(ctx, eq)
	if err != nil {
		return err
	}

	if p.history != nil {
		id, err := p.history.Append(ctx, eq, values)
		if err != nil {
			return fmt.Errorf("storing snapshot: %w", err)
		}
		p.log.Debugw("stored snapshot", "id", id)
	}

	if p.publisher != nil {
		if err := p.publisher.PublishHeatingValues(ctx, eq, values); err != nil {
			return fmt.Errorf("publishing snapshot: %w", err)
		}
	}

	p.log.Infow("heating snapshot",
		"installation_id", eq.InstallationID,
		"supply_temp", values.SupplyTemp,
		"outside_temp", values.OutsideTemp,
		"starts", values.Starts,
	)
	return nil
}
