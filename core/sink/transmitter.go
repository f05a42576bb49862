package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Transmitter delivers one batch of serialized envelopes.
type Transmitter interface {
	Transmit(ctx context.Context, batch [][]byte) error
}

// TransmitterFunc adapts a function to the Transmitter interface.
type TransmitterFunc func(ctx context.Context, batch [][]byte) error

// Transmit calls f(ctx, batch).
func (f TransmitterFunc) Transmit(ctx context.Context, batch [][]byte) error {
	return f(ctx, batch)
}

type writerTransmitter struct {
	lock sync.Mutex
	w    io.Writer
}

// NewWriterTransmitter writes every envelope as one line of JSON to w.
// Batches are written whole, never interleaved.
func NewWriterTransmitter(w io.Writer) Transmitter {
	return &writerTransmitter{w: w}
}

func (t *writerTransmitter) Transmit(ctx context.Context, batch [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	for _, payload := range batch {
		if _, err := t.w.Write(payload); err != nil {
			return fmt.Errorf("failed to write envelope: %w", err)
		}
		if _, err := t.w.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("failed to write envelope: %w", err)
		}
	}
	return nil
}
