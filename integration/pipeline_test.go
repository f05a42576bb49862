package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_DeliversEnvelopes(t *testing.T) {
	tf := NewTestFramework(t)
	defer tf.Close()

	proc, err := tf.StartProcessor(context.Background())
	require.NoError(t, err)

	const traces, spansPerTrace = 5, 3
	require.NoError(t, proc.ConsumeTraces(context.Background(), GenerateTraces(0, traces, spansPerTrace)))

	require.Eventually(t, func() bool {
		return len(tf.Server().Envelopes()) == traces*spansPerTrace
	}, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, proc.Shutdown(context.Background()))

	var requests, dependencies int
	for _, env := range tf.Server().Envelopes() {
		assert.Equal(t, "00000000-0000-0000-0000-000000000000", env.IKey)
		assert.Equal(t, "frontend", env.Tags["ai.cloud.role"])
		assert.Equal(t, "frontend-0", env.Tags["ai.cloud.roleInstance"])
		assert.NotEmpty(t, env.Tags["ai.operation.id"])
		switch env.Data.BaseType {
		case "RequestData":
			requests++
		case "RemoteDependencyData":
			dependencies++
			assert.NotEmpty(t, env.Tags["ai.operation.parentId"])
		}
	}
	assert.Equal(t, traces, requests)
	assert.Equal(t, traces*(spansPerTrace-1), dependencies)

	// Spans are forwarded untouched.
	assert.Equal(t, traces*spansPerTrace, tf.Next().SpanCount())
}

func TestPipeline_DuplicateBatchesAreDeliveredOnce(t *testing.T) {
	tf := NewTestFramework(t)
	defer tf.Close()

	proc, err := tf.StartProcessor(context.Background())
	require.NoError(t, err)

	batch := GenerateTraces(0, 2, 2)
	require.NoError(t, proc.ConsumeTraces(context.Background(), batch))
	require.NoError(t, proc.ConsumeTraces(context.Background(), batch))
	require.NoError(t, proc.Shutdown(context.Background()))

	assert.Len(t, tf.Server().Envelopes(), 4)
	assert.Equal(t, 8, tf.Next().SpanCount())
}

func TestPipeline_SpoolSurvivesRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tf := NewTestFramework(t)
	defer tf.Close()
	dir := t.TempDir()

	// ---------- Phase 1: endpoint rejects everything ----------
	tf.Server().SetFailing(true)
	proc1, err := tf.StartProcessor(context.Background(), WithSpoolPath(dir))
	require.NoError(t, err)

	require.NoError(t, proc1.ConsumeTraces(context.Background(), GenerateTraces(0, 4, 2)))
	require.Eventually(t, func() bool {
		return tf.Server().Requests() > 0
	}, 5*time.Second, 50*time.Millisecond)

	assert.Error(t, proc1.Shutdown(context.Background()), "final flush should fail while the endpoint rejects batches")
	assert.Empty(t, tf.Server().Envelopes())

	// ---------- Phase 2: restart against a healthy endpoint ----------
	tf.Server().SetFailing(false)
	proc2, err := tf.StartProcessor(context.Background(), WithSpoolPath(dir), WithFlushInterval(50*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(tf.Server().Envelopes()) == 8
	}, 5*time.Second, 50*time.Millisecond, "spooled envelopes should be delivered after restart")

	// ---------- Phase 3: restored items are still deduplicated ----------
	require.NoError(t, proc2.ConsumeTraces(context.Background(), GenerateTraces(0, 4, 2)))
	require.NoError(t, proc2.ConsumeTraces(context.Background(), GenerateTraces(100, 1, 2)))
	require.NoError(t, proc2.Shutdown(context.Background()))

	assert.Len(t, tf.Server().Envelopes(), 10)
}
