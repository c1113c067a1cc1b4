// Package schema maintains the immutable snapshot of the database layout
// that the pipeline uses as generation context. The snapshot is built once
// at startup and replaced wholesale on refresh; concurrent readers only
// ever see a complete snapshot.
package schema

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/askdb/askdb/databases"
	"github.com/askdb/askdb/types"
)

type tableSamples = map[string][]types.Row

// Provider owns the current snapshot and its per-table row samples.
type Provider struct {
	db         databases.Database
	sampleRows int
	logger     *zap.Logger

	snapshot atomic.Pointer[types.Snapshot]
	samples  atomic.Pointer[tableSamples]
}

func NewProvider(db databases.Database, sampleRows int, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sampleRows <= 0 {
		sampleRows = 3
	}

	p := &Provider{
		db:         db,
		sampleRows: sampleRows,
		logger:     logger,
	}
	p.snapshot.Store(&types.Snapshot{Tables: map[string]types.TableSchema{}})
	empty := tableSamples{}
	p.samples.Store(&empty)
	return p
}

// Load introspects the database and swaps in a fresh snapshot. A failed
// load leaves the previous snapshot in place and returns the error; the
// caller decides whether that is fatal (at startup it is not: the system
// operates with an empty schema).
func (p *Provider) Load(ctx context.Context) error {
	snapshot, err := p.db.Scan(ctx, nil)
	if err != nil {
		p.logger.Error("schema load failed", zap.Error(err))
		return fmt.Errorf("failed to load schema: %w", err)
	}

	samples := make(tableSamples)
	for table := range snapshot.Tables {
		rows, err := p.db.Sample(ctx, table, p.sampleRows)
		if err != nil {
			// Samples are generation context only; skip on failure.
			p.logger.Warn("table sample failed", zap.String("table", table), zap.Error(err))
			continue
		}
		if len(rows) > 0 {
			samples[table] = rows
		}
	}

	p.snapshot.Store(snapshot)
	p.samples.Store(&samples)
	p.logger.Info("schema snapshot loaded",
		zap.Int("tables", len(snapshot.Tables)),
		zap.Int("sampled_tables", len(samples)))
	return nil
}

// Refresh rebuilds the snapshot on demand.
func (p *Provider) Refresh(ctx context.Context) error {
	return p.Load(ctx)
}

// Current returns the active snapshot. Never nil.
func (p *Provider) Current() *types.Snapshot {
	return p.snapshot.Load()
}

// CurrentSamples returns the per-table samples captured with the active
// snapshot. The returned map must be treated as read-only.
func (p *Provider) CurrentSamples() map[string][]types.Row {
	return *p.samples.Load()
}
