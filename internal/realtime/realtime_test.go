package realtime_test

import (
	"encoding/json"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/RoModerate/romoderate/internal/domain"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/RoModerate/romoderate/internal/realtime"
	"github.com/RoModerate/romoderate/internal/tests"
	"github.com/RoModerate/romoderate/pkg/fp"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type wsEnvelope struct {
	Op      realtime.Op     `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

func dialSession(t *testing.T, events *fp.Broadcaster[domain.EntityType, domain.ChangeEvent],
	moderatorID string, communities ...string,
) *websocket.Conn {
	t.Helper()

	coordinator := realtime.NewCoordinator(events)
	go coordinator.Start(t.Context())

	engine := httphelper.CreateRouter(httphelper.RouterOpts{Mode: gin.TestMode})
	realtime.NewHandlerRealtime(engine, coordinator,
		&tests.StaticAuthenticator{Profile: tests.Moderator(moderatorID, communities...)}, nil)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	conn, _, errDial := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, errDial)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, op realtime.Op, payload any) {
	t.Helper()

	raw, errMarshal := json.Marshal(payload)
	require.NoError(t, errMarshal)
	require.NoError(t, conn.WriteJSON(realtime.Request{Op: op, Payload: raw}))
}

func recv(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second*5)))

	var envelope wsEnvelope
	require.NoError(t, conn.ReadJSON(&envelope))

	return envelope
}

func TestSubscribeReceivesEvents(t *testing.T) {
	t.Parallel()

	events := fp.NewBroadcaster[domain.EntityType, domain.ChangeEvent]()
	conn := dialSession(t, events, "100", "guild-1")

	send(t, conn, realtime.OpSubscribe, map[string]string{"community_id": "guild-1"})

	// The pong doubles as a barrier: once it arrives the subscribe before it
	// has been applied.
	send(t, conn, realtime.OpPing, nil)
	require.Equal(t, realtime.OpPong, recv(t, conn).Op)

	go events.Emit(domain.EntityBan, domain.ChangeEvent{
		CommunityID: "guild-1",
		EntityType:  domain.EntityBan,
		EntityID:    42,
		ChangeKind:  domain.ChangeCreated,
	})

	envelope := recv(t, conn)
	require.Equal(t, realtime.OpEvent, envelope.Op)

	var event domain.ChangeEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &event))
	require.Equal(t, "guild-1", event.CommunityID)
	require.Equal(t, int64(42), event.EntityID)
	require.Equal(t, domain.ChangeCreated, event.ChangeKind)
}

func TestSubscribeOutOfScope(t *testing.T) {
	t.Parallel()

	events := fp.NewBroadcaster[domain.EntityType, domain.ChangeEvent]()
	conn := dialSession(t, events, "100", "guild-1")

	send(t, conn, realtime.OpSubscribe, map[string]string{"community_id": "guild-2"})

	envelope := recv(t, conn)
	require.Equal(t, realtime.OpError, envelope.Op)
}

func TestUnsubscribedSessionSeesNothing(t *testing.T) {
	t.Parallel()

	events := fp.NewBroadcaster[domain.EntityType, domain.ChangeEvent]()
	conn := dialSession(t, events, "100", "guild-1", "guild-2")

	send(t, conn, realtime.OpSubscribe, map[string]string{"community_id": "guild-1"})
	send(t, conn, realtime.OpUnsubscribe, map[string]string{"community_id": "guild-1"})
	send(t, conn, realtime.OpPing, nil)
	require.Equal(t, realtime.OpPong, recv(t, conn).Op)

	go events.Emit(domain.EntityBan, domain.ChangeEvent{
		CommunityID: "guild-1", EntityType: domain.EntityBan, EntityID: 1, ChangeKind: domain.ChangeCreated,
	})
	go events.Emit(domain.EntityTicket, domain.ChangeEvent{
		CommunityID: "guild-2", EntityType: domain.EntityTicket, EntityID: 2, ChangeKind: domain.ChangeCreated,
	})

	// Only the second emit should land once guild-2 is subscribed; the
	// guild-1 event was dispatched to nobody.
	send(t, conn, realtime.OpSubscribe, map[string]string{"community_id": "guild-2"})
	send(t, conn, realtime.OpPing, nil)

	for {
		envelope := recv(t, conn)
		if envelope.Op == realtime.OpPong {
			break
		}

		require.Equal(t, realtime.OpEvent, envelope.Op)

		var event domain.ChangeEvent
		require.NoError(t, json.Unmarshal(envelope.Payload, &event))
		require.Equal(t, "guild-2", event.CommunityID)
	}
}

func TestUnknownOpReturnsError(t *testing.T) {
	t.Parallel()

	events := fp.NewBroadcaster[domain.EntityType, domain.ChangeEvent]()
	conn := dialSession(t, events, "100", "guild-1")

	send(t, conn, realtime.Op("shout"), nil)

	envelope := recv(t, conn)
	require.Equal(t, realtime.OpError, envelope.Op)
}

// Counts goroutines, so it stays out of the parallel group.
func TestWriterReleasedOnDisconnect(t *testing.T) {
	events := fp.NewBroadcaster[domain.EntityType, domain.ChangeEvent]()
	coordinator := realtime.NewCoordinator(events)
	go coordinator.Start(t.Context())

	engine := httphelper.CreateRouter(httphelper.RouterOpts{Mode: gin.TestMode})
	realtime.NewHandlerRealtime(engine, coordinator,
		&tests.StaticAuthenticator{Profile: tests.Moderator("100", "guild-1")}, nil)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	baseline := runtime.NumGoroutine()

	for range 25 {
		conn, _, errDial := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, errDial)

		send(t, conn, realtime.OpPing, nil)
		require.Equal(t, realtime.OpPong, recv(t, conn).Op)
		require.NoError(t, conn.Close())
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+3
	}, time.Second*5, time.Millisecond*20, "session goroutines survived disconnect")
}
