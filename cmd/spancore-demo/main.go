// Command spancore-demo runs a small traced workload through a span host and
// writes the resulting telemetry envelopes as newline delimited JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/deepaksharma/spancore/core/config"
	"github.com/deepaksharma/spancore/core/provider"
	"github.com/deepaksharma/spancore/core/sink"
	"github.com/deepaksharma/spancore/internal/metrics"
)

var (
	// Command-line flags
	configPath     = flag.String("config", "", "Path to a YAML configuration file")
	generateConfig = flag.Bool("generate-config", false, "Print the default configuration and exit")
	outputFile     = flag.String("output", "", "Write envelopes to this file instead of stdout")
	endpoint       = flag.String("endpoint", "", "Post envelopes to this ingestion endpoint instead of writing them")
	traceParent    = flag.String("traceparent", "", "Continue the trace described by this traceparent value")
	verbose        = flag.Bool("verbose", false, "Enable development logging")
)

func main() {
	flag.Parse()

	if *generateConfig {
		out, err := yaml.Marshal(config.Default())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(out))
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}
	if *verbose {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Demo failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	transmitter, closeOutput, err := newTransmitter(logger)
	if err != nil {
		return err
	}
	defer closeOutput()

	m := metrics.NewManager()
	s, err := sink.New(cfg.Sink, cfg.InstrumentationKey, transmitter,
		sink.WithLogger(logger.Named("sink")),
		sink.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sink: %w", err)
	}

	host := provider.NewHost(
		provider.WithConfig(cfg),
		provider.WithLogger(logger.Named("host")),
		provider.WithSender(s),
		provider.WithMetrics(m),
	)
	if *traceParent != "" && !host.SeedFromMeta(*traceParent) {
		logger.Warn("Ignoring malformed traceparent", zap.String("traceparent", *traceParent))
	}

	if err := runWorkload(host); err != nil {
		logger.Warn("Workload finished with an error", zap.Error(err))
	}

	if err := host.Unload(ctx); err != nil {
		return err
	}
	if err := s.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("Demo complete",
		zap.Int64("spans_started", m.SpansStarted().Load()),
		zap.Int64("items_emitted", m.ItemsEmitted().Load()),
		zap.Int64("items_flushed", m.ItemsFlushed().Load()))
	return nil
}

func newTransmitter(logger *zap.Logger) (sink.Transmitter, func(), error) {
	if *endpoint != "" {
		return sink.NewHTTPTransmitter(*endpoint, sink.WithHTTPLogger(logger.Named("http"))), func() {}, nil
	}
	if *outputFile == "" {
		return sink.NewWriterTransmitter(os.Stdout), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(*outputFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(*outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return sink.NewWriterTransmitter(f), func() { _ = f.Close() }, nil
}
