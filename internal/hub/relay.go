package hub

import (
	"context"

	"github.com/linkdeck/linkdeck/internal/pubsub"
)

// StartRelay wires the hub to the message bus. Every profile update notice
// published on the bus is forwarded to the views watching that profile.
// The relay runs until the context is canceled.
func StartRelay(ctx context.Context, sub pubsub.Subscriber, h *Hub) error {
	return sub.Subscribe(ctx, pubsub.TopicProfileUpdated, func(ctx context.Context, msg pubsub.Message) error {
		select {
		case h.Broadcast <- Notice{Username: msg.Username, Data: msg.Payload}:
		case <-ctx.Done():
		}
		return nil
	})
}
