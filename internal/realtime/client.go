package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/pkg/log"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/ratelimit"
)

var (
	ErrUnexpectedMessage = errors.New("unexpected message")
	ErrSessionIO         = errors.New("failed to read / write from connection")
	ErrParseMessage      = errors.New("failed to parse message")
	ErrReadRequest       = errors.New("failed to read/decode request")
)

func newClient(profile auth.Profile, conn *websocket.Conn) *Client {
	return &Client{
		sessionID:    uuid.Must(uuid.NewV4()),
		profile:      profile,
		conn:         conn,
		responseChan: make(chan Response, 8),
		done:         make(chan struct{}),
		subscribed:   map[string]bool{},
		lastPing:     time.Now(),
		mu:           &sync.RWMutex{},
		rl:           ratelimit.New(5, ratelimit.Per(time.Second)),
	}
}

// Client is one connected dashboard session. Delivery to the session is
// at-most-once: a client that cannot drain its response channel loses events
// instead of stalling the coordinator.
type Client struct {
	sessionID    uuid.UUID
	profile      auth.Profile
	conn         *websocket.Conn
	responseChan chan Response
	done         chan struct{}
	closeOnce    sync.Once
	subscribed   map[string]bool
	lastPing     time.Time
	mu           *sync.RWMutex
	rl           ratelimit.Limiter
}

func (c *Client) ID() string {
	return c.sessionID.String()
}

func (c *Client) Limit() {
	c.rl.Take()
}

func (c *Client) Subscribe(communityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribed[communityID] = true
}

func (c *Client) Unsubscribe(communityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.subscribed, communityID)
}

func (c *Client) IsSubscribed(communityID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.subscribed[communityID]
}

// Send never blocks. Dropped responses are fine: reconnecting clients
// re-fetch current state instead of replaying missed events.
func (c *Client) Send(response Response) {
	select {
	case c.responseChan <- response:
	default:
		slog.Debug("Dropping response for slow client", slog.String("session_id", c.ID()))
	}
}

func (c *Client) Next(request *Request) error {
	if err := c.conn.ReadJSON(request); err != nil {
		return errors.Join(err, ErrReadRequest)
	}

	return nil
}

func (c *Client) Ping() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()

	c.Send(Response{Op: OpPong, Payload: pongPayload{CreatedOn: time.Now()}})
}

func (c *Client) IsTimedOut() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return time.Since(c.lastPing) > time.Minute
}

// Start drains the response channel onto the wire until the session is
// closed. A write failure ends the writer, the connection is already dead.
func (c *Client) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.responseChan:
			if errWrite := c.conn.WriteJSON(msg); errWrite != nil {
				slog.Debug("Failed to send message to client", log.ErrAttr(errors.Join(errWrite, ErrSessionIO)))

				return
			}
		}
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	if errClose := c.conn.Close(); errClose != nil {
		slog.Debug("Error closing client connection", log.ErrAttr(errClose))
	}
}
