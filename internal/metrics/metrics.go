// Package metrics exposes the internal counters of the span host and the
// telemetry sink as OpenTelemetry observable instruments.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
)

const namespace = "spancore"

// Manager owns the counters updated by the host, the sink and the processor.
// All counters are safe for concurrent use and may be read without a meter.
type Manager struct {
	spansStarted      *atomic.Int64
	spansEnded        *atomic.Int64
	spansSuppressed   *atomic.Int64
	spansUnmapped     *atomic.Int64
	itemsEmitted      *atomic.Int64
	attributesDropped *atomic.Int64

	queueSize         *atomic.Int64
	itemsQueued       *atomic.Int64
	itemsDeduplicated *atomic.Int64
	itemsDropped      *atomic.Int64
	itemsFlushed      *atomic.Int64
	itemsSpooled      *atomic.Int64
	transmitFailures  *atomic.Int64
}

// NewManager creates a manager with all counters at zero.
func NewManager() *Manager {
	return &Manager{
		spansStarted:      atomic.NewInt64(0),
		spansEnded:        atomic.NewInt64(0),
		spansSuppressed:   atomic.NewInt64(0),
		spansUnmapped:     atomic.NewInt64(0),
		itemsEmitted:      atomic.NewInt64(0),
		attributesDropped: atomic.NewInt64(0),
		queueSize:         atomic.NewInt64(0),
		itemsQueued:       atomic.NewInt64(0),
		itemsDeduplicated: atomic.NewInt64(0),
		itemsDropped:      atomic.NewInt64(0),
		itemsFlushed:      atomic.NewInt64(0),
		itemsSpooled:      atomic.NewInt64(0),
		transmitFailures:  atomic.NewInt64(0),
	}
}

type instrument struct {
	name  string
	desc  string
	unit  string
	gauge bool
	value *atomic.Int64
}

func (m *Manager) instruments() []instrument {
	return []instrument{
		{"spans_started", "Number of spans started by the host", "{spans}", false, m.spansStarted},
		{"spans_ended", "Number of recording spans that ended", "{spans}", false, m.spansEnded},
		{"spans_suppressed", "Number of ended spans skipped because tracing was suppressed", "{spans}", false, m.spansSuppressed},
		{"spans_unmapped", "Number of ended spans the mapping engine rejected", "{spans}", false, m.spansUnmapped},
		{"items_emitted", "Number of telemetry items handed to the sender", "{items}", false, m.itemsEmitted},
		{"attributes_dropped", "Number of attributes dropped for an invalid key or value", "{attributes}", false, m.attributesDropped},
		{"sink.queue_size", "Number of telemetry items waiting to be transmitted", "{items}", true, m.queueSize},
		{"sink.items_queued", "Number of telemetry items accepted by the sink", "{items}", false, m.itemsQueued},
		{"sink.items_deduplicated", "Number of telemetry items dropped as duplicates", "{items}", false, m.itemsDeduplicated},
		{"sink.items_dropped", "Number of telemetry items dropped because the queue was full", "{items}", false, m.itemsDropped},
		{"sink.items_flushed", "Number of telemetry items transmitted successfully", "{items}", false, m.itemsFlushed},
		{"sink.items_spooled", "Number of telemetry items written to the spool", "{items}", false, m.itemsSpooled},
		{"sink.transmit_failures", "Number of failed batch transmissions", "{batches}", false, m.transmitFailures},
	}
}

// RegisterMetrics registers every counter with the meter as an observable
// instrument.
func (m *Manager) RegisterMetrics(meter metric.Meter) error {
	for _, inst := range m.instruments() {
		value := inst.value
		name := namespace + "." + inst.name
		callback := metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(value.Load())
			return nil
		})

		var err error
		if inst.gauge {
			_, err = meter.Int64ObservableGauge(name,
				metric.WithDescription(inst.desc), metric.WithUnit(inst.unit), callback)
		} else {
			_, err = meter.Int64ObservableCounter(name,
				metric.WithDescription(inst.desc), metric.WithUnit(inst.unit), callback)
		}
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return nil
}

// SpansStarted returns the started spans counter
func (m *Manager) SpansStarted() *atomic.Int64 { return m.spansStarted }

// SpansEnded returns the ended spans counter
func (m *Manager) SpansEnded() *atomic.Int64 { return m.spansEnded }

// SpansSuppressed returns the suppressed spans counter
func (m *Manager) SpansSuppressed() *atomic.Int64 { return m.spansSuppressed }

// SpansUnmapped returns the counter of spans the engine refused to map
func (m *Manager) SpansUnmapped() *atomic.Int64 { return m.spansUnmapped }

// ItemsEmitted returns the emitted items counter
func (m *Manager) ItemsEmitted() *atomic.Int64 { return m.itemsEmitted }

// AttributesDropped returns the dropped attributes counter. It is shared with
// attribute containers through attributes.WithDropCounter.
func (m *Manager) AttributesDropped() *atomic.Int64 { return m.attributesDropped }

// QueueSize returns the sink queue size gauge
func (m *Manager) QueueSize() *atomic.Int64 { return m.queueSize }

// ItemsQueued returns the queued items counter
func (m *Manager) ItemsQueued() *atomic.Int64 { return m.itemsQueued }

// ItemsDeduplicated returns the deduplicated items counter
func (m *Manager) ItemsDeduplicated() *atomic.Int64 { return m.itemsDeduplicated }

// ItemsDropped returns the dropped items counter
func (m *Manager) ItemsDropped() *atomic.Int64 { return m.itemsDropped }

// ItemsFlushed returns the flushed items counter
func (m *Manager) ItemsFlushed() *atomic.Int64 { return m.itemsFlushed }

// ItemsSpooled returns the spooled items counter
func (m *Manager) ItemsSpooled() *atomic.Int64 { return m.itemsSpooled }

// TransmitFailures returns the failed transmissions counter
func (m *Manager) TransmitFailures() *atomic.Int64 { return m.transmitFailures }
