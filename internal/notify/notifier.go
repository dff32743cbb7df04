package notify

import (
	"context"
	"log/slog"
	"sync"

	"dispatchctl/internal/domain"
	"dispatchctl/internal/logging"
)

// ChannelResult records the outcome of one channel for one envelope.
type ChannelResult struct {
	Channel   domain.Channel
	Delivered bool
	Err       error
}

// Notifier fans one envelope out to the configured channel sinks. Channels
// run concurrently and fail independently: a rejected push never prevents
// the in-app row from being written, and vice versa.
type Notifier struct {
	sinks []Sink
}

func NewNotifier(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

func (n *Notifier) Notify(ctx context.Context, env *domain.Envelope) []ChannelResult {
	if len(n.sinks) == 0 {
		return nil
	}

	msg := Render(env)
	results := make([]ChannelResult, len(n.sinks))

	var wg sync.WaitGroup
	for i, sink := range n.sinks {
		wg.Add(1)
		go func(i int, sink Sink) {
			defer wg.Done()
			delivered, err := sink.Send(ctx, env, msg)
			results[i] = ChannelResult{Channel: sink.Channel(), Delivered: delivered, Err: err}
			if err != nil {
				logging.FromContext(ctx).Warn("channel delivery failed",
					slog.String("channel", string(sink.Channel())),
					slog.Any("error", err),
				)
			}
		}(i, sink)
	}
	wg.Wait()

	return results
}
