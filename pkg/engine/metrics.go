package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// engineMetrics holds the engine's OTel instruments. Instrument creation
// errors fall back to no-op counters from the global provider, so metrics
// never block disbursement.
type engineMetrics struct {
	obligationsCreated metric.Int64Counter
	sweepsRun          metric.Int64Counter
	instructionsEmit   metric.Int64Counter
	obligationsStopped metric.Int64Counter
}

func newEngineMetrics() *engineMetrics {
	meter := otel.Meter("castellan-labs/disburse/engine")

	m := &engineMetrics{}
	m.obligationsCreated, _ = meter.Int64Counter("disburse.obligations.created",
		metric.WithDescription("Total obligations admitted to the store"),
		metric.WithUnit("{obligation}"),
	)
	m.sweepsRun, _ = meter.Int64Counter("disburse.sweeps.run",
		metric.WithDescription("Total sweep operations executed"),
		metric.WithUnit("{sweep}"),
	)
	m.instructionsEmit, _ = meter.Int64Counter("disburse.instructions.emitted",
		metric.WithDescription("Total transfer instructions emitted by sweeps"),
		metric.WithUnit("{instruction}"),
	)
	m.obligationsStopped, _ = meter.Int64Counter("disburse.obligations.stopped",
		metric.WithDescription("Total obligations cancelled with refund"),
		metric.WithUnit("{obligation}"),
	)
	return m
}

func (m *engineMetrics) created(ctx context.Context) {
	if m.obligationsCreated != nil {
		m.obligationsCreated.Add(ctx, 1)
	}
}

func (m *engineMetrics) swept(ctx context.Context, emitted int) {
	if m.sweepsRun != nil {
		m.sweepsRun.Add(ctx, 1)
	}
	if m.instructionsEmit != nil && emitted > 0 {
		m.instructionsEmit.Add(ctx, int64(emitted))
	}
}

func (m *engineMetrics) stopped(ctx context.Context) {
	if m.obligationsStopped != nil {
		m.obligationsStopped.Add(ctx, 1)
	}
}
