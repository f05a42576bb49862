package appinsightsprocessor

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/processor"
	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/attributes"
	"github.com/deepaksharma/spancore/core/mapping"
	"github.com/deepaksharma/spancore/core/sink"
	"github.com/deepaksharma/spancore/core/span"
	"github.com/deepaksharma/spancore/internal/metrics"
)

// appInsightsProcessor maps every span passing through the pipeline to an
// Application Insights envelope and forwards the traces unchanged.
type appInsightsProcessor struct {
	logger *zap.Logger
	config *Config

	nextConsumer consumer.Traces

	metricsManager *metrics.Manager
	settings       component.TelemetrySettings
	engine         *mapping.Engine
	sink           *sink.Sink
	output         *os.File
}

// Ensure the processor implements required interfaces
var _ processor.Traces = (*appInsightsProcessor)(nil)

func newAppInsightsProcessor(
	_ context.Context,
	set component.TelemetrySettings,
	cfg *Config,
	nextConsumer consumer.Traces,
) (processor.Traces, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := set.Logger

	p := &appInsightsProcessor{
		logger:         logger,
		config:         cfg,
		nextConsumer:   nextConsumer,
		metricsManager: metrics.NewManager(),
		settings:       set,
		engine:         mapping.NewEngine(cfg.mappingOptions(), logger),
	}

	var transmitter sink.Transmitter
	if cfg.OutputPath != "" {
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open output file: %w", err)
		}
		p.output = f
		transmitter = sink.NewWriterTransmitter(f)
	} else {
		transmitter = sink.NewHTTPTransmitter(cfg.Endpoint, sink.WithHTTPLogger(logger))
	}

	s, err := sink.New(cfg.Sink, cfg.InstrumentationKey, transmitter,
		sink.WithLogger(logger),
		sink.WithMetrics(p.metricsManager))
	if err != nil {
		p.closeOutput()
		return nil, fmt.Errorf("failed to create sink: %w", err)
	}
	p.sink = s

	return p, nil
}

// Start implements the Component interface
func (p *appInsightsProcessor) Start(ctx context.Context, _ component.Host) error {
	p.logger.Info("Starting appinsights processor",
		zap.String("endpoint", p.config.Endpoint),
		zap.String("output_path", p.config.OutputPath))

	meter := p.settings.MeterProvider.Meter("appinsightsprocessor")
	if err := p.metricsManager.RegisterMetrics(meter); err != nil {
		p.logger.Error("Failed to register metrics", zap.Error(err))
	}

	return p.sink.Start(ctx)
}

// Shutdown implements the Component interface
func (p *appInsightsProcessor) Shutdown(ctx context.Context) error {
	p.logger.Info("Shutting down appinsights processor")

	err := p.sink.Shutdown(ctx)
	p.closeOutput()
	return err
}

func (p *appInsightsProcessor) closeOutput() {
	if p.output == nil {
		return
	}
	if err := p.output.Close(); err != nil {
		p.logger.Error("Failed to close output file", zap.Error(err))
	}
	p.output = nil
}

// ConsumeTraces implements the processor.Traces interface
func (p *appInsightsProcessor) ConsumeTraces(ctx context.Context, traces ptrace.Traces) error {
	rss := traces.ResourceSpans()
	for i := 0; i < rss.Len(); i++ {
		rs := rss.At(i)
		roleTags := resourceTags(rs.Resource())

		ilss := rs.ScopeSpans()
		for j := 0; j < ilss.Len(); j++ {
			spans := ilss.At(j).Spans()
			for k := 0; k < spans.Len(); k++ {
				p.translate(spans.At(k), roleTags)
			}
		}
	}

	return p.nextConsumer.ConsumeTraces(ctx, traces)
}

func (p *appInsightsProcessor) translate(sp ptrace.Span, roleTags map[string]string) {
	snapshot := span.SnapshotFromPData(sp,
		attributes.WithLogger(p.logger),
		attributes.WithDropCounter(p.metricsManager.AttributesDropped()))
	p.metricsManager.SpansEnded().Inc()

	item, err := p.engine.Map(snapshot)
	if err != nil {
		p.metricsManager.SpansUnmapped().Inc()
		p.logger.Debug("Skipping span",
			zap.String("name", sp.Name()),
			zap.Error(err))
		return
	}

	mapping.ApplyResourceTags(item, roleTags)

	p.sink.Send(item)
	p.metricsManager.ItemsEmitted().Inc()
}

// resourceTags derives the cloud role tags from the resource of a batch.
func resourceTags(res pcommon.Resource) map[string]string {
	attrs := res.Attributes()
	return mapping.ResourceTags(func(key string) (string, bool) {
		v, ok := attrs.Get(key)
		if !ok {
			return "", false
		}
		return v.AsString(), true
	})
}

// Capabilities implements the processor.Traces interface
func (p *appInsightsProcessor) Capabilities() consumer.Capabilities {
	return consumer.Capabilities{MutatesData: false}
}
