package hub

import "log/slog"

// Subscriber represents a single connected view (a public page or an open
// dashboard) interested in updates for one profile.
type Subscriber struct {
	// Username scopes the subscriber to one profile's updates.
	Username string

	// Send is a buffered channel of outbound messages. The Hub sends messages
	// to this channel, and the client is responsible for reading from it.
	Send chan []byte
}

// Notice is an update addressed to every view of one profile.
type Notice struct {
	Username string
	Data     []byte
}

// Hub fans profile update notices out to the views currently watching each
// profile. It maintains the set of active subscribers and routes notices by
// username.
type Hub struct {
	// Registered subscribers.
	subscribers map[*Subscriber]bool

	// Broadcast is the channel for inbound notices from any component.
	Broadcast chan Notice

	// Register is a channel for new subscribers to register with the hub.
	Register chan *Subscriber

	// Unregister is a channel for subscribers to unregister from the hub.
	Unregister chan *Subscriber
}

// NewHub creates and returns a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Broadcast:   make(chan Notice),
		Register:    make(chan *Subscriber),
		Unregister:  make(chan *Subscriber),
		subscribers: make(map[*Subscriber]bool),
	}
}

// Run starts the Hub's message processing loop. It must be run in a separate
// goroutine. It listens on its channels and orchestrates all communication.
func (h *Hub) Run() {
	for {
		select {
		case subscriber := <-h.Register:
			h.subscribers[subscriber] = true
			slog.Info("New subscriber registered", "username", subscriber.Username, "total_subscribers", len(h.subscribers))

		case subscriber := <-h.Unregister:
			if _, ok := h.subscribers[subscriber]; ok {
				delete(h.subscribers, subscriber)
				close(subscriber.Send)
				slog.Info("Subscriber unregistered", "username", subscriber.Username, "total_subscribers", len(h.subscribers))
			}

		case notice := <-h.Broadcast:
			for subscriber := range h.subscribers {
				if subscriber.Username != notice.Username {
					continue
				}
				// Use a non-blocking send. If the subscriber's buffer is full,
				// it suggests the client is lagging or disconnected.
				select {
				case subscriber.Send <- notice.Data:
				default:
					// The client's send buffer is full. We assume it's dead or stuck,
					// so we unregister it and close its channel.
					close(subscriber.Send)
					delete(h.subscribers, subscriber)
					slog.Warn("Unregistering slow subscriber", "username", subscriber.Username, "total_subscribers", len(h.subscribers))
				}
			}
		}
	}
}
