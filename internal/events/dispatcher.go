package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	BufferSize     int
	DropIfFull     bool
	PublishTimeout time.Duration
}

// ErrorFunc receives publish failures and drops.
type ErrorFunc func(channel string, event Event, err error)

// Dispatcher asynchronously forwards events to a publisher.
type Dispatcher struct {
	cfg       Config
	publisher Publisher
	onError   ErrorFunc
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64

	// mu orders sends against Close so nothing lands in the buffer after
	// the drain.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. A nil publisher yields a nil
// dispatcher, which accepts and discards every event.
func NewDispatcher(cfg Config, publisher Publisher, onError ErrorFunc) *Dispatcher {
	if publisher == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if onError == nil {
		onError = func(string, Event, error) {}
	}

	d := &Dispatcher{
		cfg:       cfg,
		publisher: publisher,
		onError:   onError,
		ch:        make(chan Message, cfg.BufferSize),
		done:      make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, msg.Channel, msg.Event); err != nil {
		d.failed.Add(1)
		d.onError(msg.Channel, msg.Event, err)
	}
}

// Emit queues event for channel. It never returns an error; a full buffer
// either drops the event or waits for space until ctx is done. Events
// emitted after Close are dropped with ErrClosed.
func (d *Dispatcher) Emit(ctx context.Context, channel string, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		d.onError(channel, event, ErrClosed)
		return
	}
	msg := Message{Channel: channel, Event: event}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- msg:
		default:
			d.dropped.Add(1)
			d.onError(channel, event, ErrDropped)
		}
		return
	}

	select {
	case d.ch <- msg:
	case <-ctx.Done():
		d.dropped.Add(1)
		d.onError(channel, event, ctx.Err())
	}
}

// Close drains queued events and stops the delivery goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
