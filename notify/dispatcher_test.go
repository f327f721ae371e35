package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	err  error
	gate chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestDispatcherSyncDeliversAndSwallowsErrors(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay down")}
	var failed atomic.Int32
	var gotErr error
	d := NewDispatcher(Config{Async: false}, sender, nil, Observer{
		Failed: func(_ Message, err error) {
			failed.Add(1)
			gotErr = err
		},
	})
	defer d.Close()

	d.Dispatch(context.Background(), Message{Kind: KindVerificationCode, To: "a@x.io"})

	assert.Equal(t, 1, sender.count())
	assert.Equal(t, int32(1), failed.Load())
	assert.ErrorIs(t, gotErr, ErrDelivery)
}

func TestDispatcherAsyncDeliversOnClose(t *testing.T) {
	sender := &recordingSender{}
	var sent atomic.Int32
	d := NewDispatcher(Config{Async: true, QueueSize: 16, Workers: 2}, sender, nil, Observer{
		Sent: func(Message) { sent.Add(1) },
	})

	for i := 0; i < 10; i++ {
		d.Dispatch(context.Background(), Message{Kind: KindPasswordReset, To: "a@x.io"})
	}
	d.Close()

	assert.Equal(t, 10, sender.count())
	assert.Equal(t, int32(10), sent.Load())

	d.Dispatch(context.Background(), Message{To: "late@x.io"})
	assert.Equal(t, 10, sender.count(), "dispatch after close must be ignored")
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	var dropped atomic.Int32
	d := NewDispatcher(Config{Async: true, QueueSize: 1, Workers: 1}, sender, nil, Observer{
		Dropped: func(Message) { dropped.Add(1) },
	})

	for i := 0; i < 10; i++ {
		d.Dispatch(context.Background(), Message{To: "a@x.io"})
	}
	require.Positive(t, d.Dropped())
	assert.Equal(t, int32(d.Dropped()), dropped.Load())

	close(sender.gate)
	d.Close()
	assert.Equal(t, uint64(10), d.Dropped()+uint64(sender.count()))
}

func TestDispatcherAppliesSendTimeout(t *testing.T) {
	var deadlineSet atomic.Bool
	sender := SenderFunc(func(ctx context.Context, _ Message) error {
		_, ok := ctx.Deadline()
		deadlineSet.Store(ok)
		return nil
	})
	d := NewDispatcher(Config{SendTimeout: time.Second}, sender, nil, Observer{})
	d.Dispatch(context.Background(), Message{To: "a@x.io"})
	assert.True(t, deadlineSet.Load())
}

func TestNilSenderIsNoop(t *testing.T) {
	d := NewDispatcher(Config{Async: true}, nil, nil, Observer{})
	d.Dispatch(context.Background(), Message{To: "a@x.io"})
	d.Close()
	assert.Zero(t, d.Dropped())
}
