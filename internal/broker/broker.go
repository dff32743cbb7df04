package broker

import "context"

// Publisher hands delivery work to the message broker. PublishToDLQ
// surfaces abandoned attempts to operators.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishToDLQ(ctx context.Context, data []byte) error
	Close() error
}
