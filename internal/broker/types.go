package broker

import (
	"context"

	"herald/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

// HandlerFunc processes one envelope. Returning an error triggers a retry
// unless the error is fatal, in which case the message goes to the DLQ.
type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error
