package server

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"hope/internal/pianobar"
)

//go:generate mockgen -destination=mock_consumer_test.go -package=server hope/internal/server Consumer

// Consumer receives every event the socket server decodes. Calls are made
// one at a time, in accept order.
type Consumer interface {
	Consume(ctx context.Context, ev pianobar.Event) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, ev pianobar.Event) error

func (f ConsumerFunc) Consume(ctx context.Context, ev pianobar.Event) error {
	return f(ctx, ev)
}

// MultiConsumer calls each consumer in order. Every consumer runs even if
// an earlier one fails; the errors are joined.
func MultiConsumer(consumers ...Consumer) Consumer {
	return ConsumerFunc(func(ctx context.Context, ev pianobar.Event) error {
		var errs []error
		for _, c := range consumers {
			if err := c.Consume(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LogConsumer logs the eventcmd at debug and the whole event at trace.
func LogConsumer(logger logrus.Ext1FieldLogger) Consumer {
	return ConsumerFunc(func(ctx context.Context, ev pianobar.Event) error {
		logger.Debugf("Received %s eventcmd", ev.EventCmd)
		logger.WithField("event", ev).Trace("Event payload")
		return nil
	})
}

// Recorder keeps the most recent event of each eventcmd in memory.
type Recorder struct {
	mu       sync.RWMutex
	latest   map[pianobar.EventCmd]pianobar.Event
	received uint64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		latest: make(map[pianobar.EventCmd]pianobar.Event),
	}
}

func (r *Recorder) Consume(_ context.Context, ev pianobar.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[ev.EventCmd] = ev
	r.received++
	return nil
}

// Latest returns a snapshot of the last event per eventcmd.
func (r *Recorder) Latest() map[pianobar.EventCmd]pianobar.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[pianobar.EventCmd]pianobar.Event, len(r.latest))
	for k, v := range r.latest {
		out[k] = v
	}
	return out
}

// Last returns the last event recorded for cmd.
func (r *Recorder) Last(cmd pianobar.EventCmd) (pianobar.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.latest[cmd]
	return ev, ok
}

// Received is the number of events recorded since start.
func (r *Recorder) Received() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.received
}
