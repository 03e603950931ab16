package broker

import (
	"context"
	"sync"

	"herald/pkg/models"
)

type PublishedMessage struct {
	Topic    string
	Envelope models.MessageEnvelope
}

// MemoryProducer records published envelopes. It backs tests and deployments
// running without a broker.
type MemoryProducer struct {
	mu       sync.Mutex
	messages []PublishedMessage
	err      error
}

func NewMemoryProducer() *MemoryProducer {
	return &MemoryProducer{}
}

// FailWith makes subsequent Publish calls return err.
func (p *MemoryProducer) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MemoryProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Envelope: msg})
	return nil
}

func (p *MemoryProducer) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *MemoryProducer) Close() error {
	return nil
}
