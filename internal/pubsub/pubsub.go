package pubsub

import (
	"context"
)

// Topic published by the live aggregate whenever its snapshot changes.
// The payload is the username of the affected profile.
const TopicProfileUpdated = "live.profile.updated"

// Message is the structure passed between components on the bus.
// It is intentionally simple to act as a wrapper for raw data.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "live.profile.updated").
	Topic string
	// Username identifies the profile the message concerns.
	Username string
	// Payload contains the raw message data.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context (e.g., timestamps).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the Pub/Sub system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the Pub/Sub system.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with the handler.
	// The handler runs on a background goroutine until the context is canceled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
