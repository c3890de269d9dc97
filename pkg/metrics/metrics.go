// Package metrics records engine counters through opencensus. The core
// only records raw measures; exporters and rendering belong to whoever
// embeds the engine.
package metrics

import (
	"context"
	"sync"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
)

var (
	// ChunksStored counts physical chunk writes
	ChunksStored = stats.Int64("vouchfs/chunks/stored", "chunks physically written", stats.UnitDimensionless)

	// ChunksDeduplicated counts chunk puts resolved by reference increment
	ChunksDeduplicated = stats.Int64("vouchfs/chunks/deduplicated", "chunk writes avoided by dedup", stats.UnitDimensionless)

	// LogicalBytes counts bytes presented to the dedup store
	LogicalBytes = stats.Int64("vouchfs/bytes/logical", "logical bytes across all puts", stats.UnitBytes)

	// PhysicalBytes counts bytes physically written
	PhysicalBytes = stats.Int64("vouchfs/bytes/physical", "unique bytes written to blob storage", stats.UnitBytes)

	// Uploads counts completed upload workflows
	Uploads = stats.Int64("vouchfs/engine/uploads", "completed uploads", stats.UnitDimensionless)

	// Downloads counts completed download workflows
	Downloads = stats.Int64("vouchfs/engine/downloads", "completed downloads", stats.UnitDimensionless)

	// IntegrityFailures counts detected integrity violations
	IntegrityFailures = stats.Int64("vouchfs/engine/integrity_failures", "integrity violations detected", stats.UnitDimensionless)
)

var registerOnce sync.Once

// Init registers the measure views. Safe to call repeatedly; only the
// first call matters.
func Init() error {
	var err error
	registerOnce.Do(func() {
		views := make([]*view.View, 0, 7)
		for _, m := range []*stats.Int64Measure{
			ChunksStored, ChunksDeduplicated, LogicalBytes, PhysicalBytes,
			Uploads, Downloads, IntegrityFailures,
		} {
			views = append(views, &view.View{
				Name:        m.Name(),
				Description: m.Description(),
				Measure:     m,
				Aggregation: view.Sum(),
			})
		}
		err = view.Register(views...)
	})
	return err
}

// Inc increments a counter-like measure by one
func Inc(m *stats.Int64Measure) {
	stats.Record(context.Background(), m.M(1))
}

// Add records a value against a measure
func Add(m *stats.Int64Measure, v int64) {
	stats.Record(context.Background(), m.M(v))
}

// Enable is a mixin giving components an on/off switch for metrics
// recording without threading a flag everywhere.
type Enable struct {
	enabled bool
}

// EnableMetrics flips metrics recording for the embedding component
func (e *Enable) EnableMetrics(on bool) {
	e.enabled = on
}

// MetricsEnabled reports whether the component records metrics
func (e *Enable) MetricsEnabled() bool {
	return e.enabled
}
