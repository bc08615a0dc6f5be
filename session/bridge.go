package session

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"pkt.systems/culturessh/internal/mailbox"
	"pkt.systems/culturessh/schema"
	"pkt.systems/pslog"
)

// Bridge lets a render surface perform plain buffered writes while delivery
// to the transport happens on a separate forwarding goroutine. Write and
// Flush belong to the surface owner and are not safe for concurrent use.
type Bridge struct {
	buf     []byte
	queue   *mailbox.Mailbox[[]byte]
	dead    atomic.Bool
	closing atomic.Bool
	done    chan struct{}
	log     pslog.Logger
}

// NewBridge starts the forwarding goroutine writing to out.
func NewBridge(out io.Writer, logger pslog.Logger) *Bridge {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	b := &Bridge{
		queue: mailbox.New[[]byte](),
		done:  make(chan struct{}),
		log:   logger,
	}
	go b.forward(out)
	return b
}

// Write appends p to the pending buffer. It never blocks and never fails.
func (b *Bridge) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes written since the last Flush.
func (b *Bridge) Buffered() int {
	return len(b.buf)
}

// Flush hands the pending buffer to the forwarder as one batch and clears it.
// It fails once the forwarder is gone, even when nothing is pending.
func (b *Bridge) Flush() error {
	if b.dead.Load() || b.closing.Load() {
		return fmt.Errorf("flush: %w: %w", schema.ErrSessionClosed, io.ErrClosedPipe)
	}
	if len(b.buf) == 0 {
		if b.queue.Closed() {
			return fmt.Errorf("flush: %w: %w", schema.ErrSessionClosed, io.ErrClosedPipe)
		}
		return nil
	}
	batch := b.buf
	b.buf = nil
	if !b.queue.Push(batch) {
		return fmt.Errorf("flush: %w: %w", schema.ErrSessionClosed, io.ErrClosedPipe)
	}
	return nil
}

// Close stops accepting batches. Batches already queued are still written
// before the forwarder exits.
func (b *Bridge) Close() {
	if b.closing.Swap(true) {
		return
	}
	b.queue.Push(nil)
}

// Done is closed when the forwarding goroutine has exited.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) forward(out io.Writer) {
	defer close(b.done)
	defer b.dead.Store(true)
	for {
		batches, open := b.queue.Drain()
		for _, batch := range batches {
			if len(batch) == 0 {
				continue
			}
			if _, err := out.Write(batch); err != nil {
				if b.closing.Load() {
					b.log.Debug("session output dropped", "err", err, "bytes", len(batch))
				} else {
					b.log.Warn("session output failed", "err", err, "bytes", len(batch))
				}
				b.queue.Close()
				return
			}
			b.log.Trace("session output", "bytes", len(batch))
		}
		if !open {
			return
		}
		if b.closing.Load() && b.queue.CloseIfEmpty() {
			return
		}
		<-b.queue.Ready()
	}
}
