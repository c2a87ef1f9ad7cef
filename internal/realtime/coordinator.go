// Package realtime pushes case change events to connected dashboard sessions
// over websockets. There is no persistence and no replay: a session only sees
// events emitted while it is connected and subscribed.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/pkg/fp"
	"github.com/gorilla/websocket"
)

type Coordinator struct {
	events  *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]
	clients []*Client
	mu      *sync.RWMutex
}

func NewCoordinator(events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent]) *Coordinator {
	return &Coordinator{
		events:  events,
		clients: []*Client{},
		mu:      &sync.RWMutex{},
	}
}

// Start consumes committed change events and fans them out until ctx is
// cancelled. Runs as its own goroutine next to the HTTP server.
func (c *Coordinator) Start(ctx context.Context) {
	eventChan := make(chan domain.ChangeEvent, 64)
	if errConsume := c.events.Consume(eventChan); errConsume != nil {
		slog.Error("Failed to register event consumer", slog.String("error", errConsume.Error()))

		return
	}

	defer c.events.Unregister(eventChan)

	zombieTicker := time.NewTicker(time.Second * 30)
	defer zombieTicker.Stop()

	for {
		select {
		case event := <-eventChan:
			c.dispatch(event)
		case <-zombieTicker.C:
			c.removeZombies()
		case <-ctx.Done():
			c.broadcast(Response{Op: OpBye, Payload: byePayload{Message: "Server shutting down"}})

			return
		}
	}
}

// dispatch delivers one event to every session subscribed to its community.
// Scope was checked at subscribe time, so membership of the subscription set
// is sufficient here.
func (c *Coordinator) dispatch(event domain.ChangeEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, client := range c.clients {
		if client.IsSubscribed(event.CommunityID) {
			client.Send(Response{Op: OpEvent, Payload: event})
		}
	}
}

func (c *Coordinator) broadcast(response Response) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, client := range c.clients {
		client.Send(response)
	}
}

func (c *Coordinator) removeZombies() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var valid []*Client

	for _, client := range c.clients {
		if client.IsTimedOut() {
			client.Close()
			slog.Debug("Removing zombie client", slog.String("session_id", client.ID()))
		} else {
			valid = append(valid, client)
		}
	}

	c.clients = valid
}

// Connect registers a fresh session for the upgraded connection and starts
// its writer goroutine.
func (c *Coordinator) Connect(ctx context.Context, profile auth.Profile, conn *websocket.Conn) *Client {
	client := newClient(profile, conn)

	c.mu.Lock()
	c.clients = append(c.clients, client)
	clientCount := len(c.clients)
	c.mu.Unlock()

	go client.Start(ctx)

	slog.Debug("Client connected", slog.String("session_id", client.ID()),
		slog.String("moderator_id", profile.ModeratorID), slog.Int("clients", clientCount))

	return client
}

func (c *Coordinator) Disconnect(client *Client) {
	c.mu.Lock()

	var valid []*Client

	for _, existing := range c.clients {
		if existing != client {
			valid = append(valid, existing)
		}
	}

	c.clients = valid
	c.mu.Unlock()

	client.Close()

	slog.Debug("Client disconnected", slog.String("session_id", client.ID()))
}

// Subscribe adds the community to the session's subscription set after a
// scope check; communities outside the caller's scope are rejected.
func (c *Coordinator) Subscribe(client *Client, communityID string) error {
	if errScope := auth.CheckScope(client.profile, communityID); errScope != nil {
		return errScope
	}

	client.Subscribe(communityID)

	return nil
}

func (c *Coordinator) Unsubscribe(client *Client, communityID string) {
	client.Unsubscribe(communityID)
}
