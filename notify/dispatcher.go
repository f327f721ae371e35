package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatch behavior.
type Config struct {
	Async       bool
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Observer receives delivery outcomes. Any field may be nil.
type Observer struct {
	Sent    func(Message)
	Failed  func(Message, error)
	Dropped func(Message)
}

// Dispatcher hands messages to a Sender without surfacing delivery errors to
// the caller. In async mode a bounded queue feeds a fixed worker pool and a
// full queue drops the message.
type Dispatcher struct {
	cfg      Config
	sender   Sender
	logger   *slog.Logger
	observer Observer

	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the worker pool when cfg.Async is set.
func NewDispatcher(cfg Config, sender Sender, logger *slog.Logger, observer Observer) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	d := &Dispatcher{
		cfg:      cfg,
		sender:   sender,
		logger:   logger,
		observer: observer,
		done:     make(chan struct{}),
	}
	if !cfg.Async || sender == nil {
		return d
	}

	d.ch = make(chan Message, cfg.QueueSize)
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(context.Background(), msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(context.Background(), msg)
				default:
					return
				}
			}
		}
	}
}

// Dispatch sends msg, or queues it in async mode. It never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	if d == nil || d.sender == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.ch == nil {
		d.deliver(ctx, msg)
		return
	}

	select {
	case d.ch <- msg:
	case <-d.done:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification dropped: queue full",
			slog.String("kind", string(msg.Kind)),
			slog.String("to", msg.To),
		)
		if d.observer.Dropped != nil {
			d.observer.Dropped(msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}

	err := d.sender.Send(ctx, msg)
	if err != nil {
		if !errors.Is(err, ErrDelivery) {
			err = fmt.Errorf("%w: %v", ErrDelivery, err)
		}
		d.logger.Error("notification delivery failed",
			slog.String("kind", string(msg.Kind)),
			slog.String("to", msg.To),
			slog.Any("error", err),
		)
		if d.observer.Failed != nil {
			d.observer.Failed(msg, err)
		}
		return
	}
	if d.observer.Sent != nil {
		d.observer.Sent(msg)
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many messages were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
