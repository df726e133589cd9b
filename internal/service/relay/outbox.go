package relay

import "sync"

// DefaultOutboxSize is the per-connection frame buffer used when none is
// configured.
const DefaultOutboxSize = 64

// Outbox is a bounded, non-blocking Sink. Transports drain Frames from their
// own writer goroutine. When the buffer is full the outbox closes itself, so
// a slow reader is dropped instead of stalling the broadcast.
type Outbox struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		frames: make(chan []byte, size),
		done:   make(chan struct{}),
	}
}

// Send enqueues a frame without blocking.
func (o *Outbox) Send(frame []byte) error {
	if o.Closed() {
		return ErrConnectionClosed
	}

	select {
	case o.frames <- frame:
		return nil
	default:
		o.Close()
		return ErrSendQueueFull
	}
}

// Closed reports whether the outbox stopped accepting frames.
func (o *Outbox) Closed() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Close stops the outbox. Frames already queued remain readable.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

func (o *Outbox) Frames() <-chan []byte { return o.frames }

func (o *Outbox) Done() <-chan struct{} { return o.done }
