package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncDomain "github.com/rcvieira/fluxo/domains/sync"
)

// startHubServer mounts the hub on a real listener so tests can dial it with
// an ordinary websocket client.
func startHubServer(t *testing.T, authorize func(token string) bool) (*Hub, string) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	hub.RegisterRoutes(app, authorize)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(shutdownCtx)
	})

	return hub, "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	var conn *gorilla.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, _, err = gorilla.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Cleanup(func() { _ = conn.Close() })
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dial %s: %v", url, err)
	return nil
}

func readEnvelope(t *testing.T, conn *gorilla.Conn) syncDomain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	var env syncDomain.Envelope
	require.NoError(t, json.Unmarshal(message, &env))
	return env
}

func TestHub_BroadcastReachesEveryConnection(t *testing.T) {
	hub, url := startHubServer(t, nil)

	conn1 := dial(t, url+"?token=a:1")
	conn2 := dial(t, url+"?token=b:2")

	require.Eventually(t, func() bool {
		return hub.ConnectedCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	hub.Publish(syncDomain.ChangeEvent{
		Kind:    syncDomain.KindProjectUpdated,
		Payload: syncDomain.Payload{ID: "p1"},
	})

	for _, conn := range []*gorilla.Conn{conn1, conn2} {
		env := readEnvelope(t, conn)
		assert.Equal(t, "project:updated", env.Event)

		var p syncDomain.Payload
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		assert.Equal(t, "p1", p.ID)
	}
}

func TestHub_AnswersPing(t *testing.T) {
	_, url := startHubServer(t, nil)
	conn := dial(t, url)

	ping, _ := json.Marshal(syncDomain.Envelope{Event: string(syncDomain.KindPing)})
	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, ping))

	env := readEnvelope(t, conn)
	assert.Equal(t, string(syncDomain.KindPong), env.Event)
}

func TestHub_RejectsBadToken(t *testing.T) {
	_, url := startHubServer(t, func(token string) bool {
		return token == "staff:secret"
	})

	_, resp, err := gorilla.DefaultDialer.Dial(url+"?token=wrong", nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	conn := dial(t, url+"?token=staff:secret")
	require.NotNil(t, conn)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, url := startHubServer(t, nil)

	conn := dial(t, url)
	require.Eventually(t, func() bool {
		return hub.ConnectedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.ConnectedCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RelayedEnvelopeReachesLocalClients(t *testing.T) {
	hub, url := startHubServer(t, nil)

	conn := dial(t, url)
	require.Eventually(t, func() bool {
		return hub.ConnectedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// An envelope arriving from a sibling instance goes through the relay
	// queue and is written by the run loop, like any local broadcast.
	env, err := syncDomain.ChangeEvent{
		Kind:    syncDomain.KindCommentCreated,
		Payload: syncDomain.Payload{ID: "c1", ProjectID: "p1"},
	}.Encode()
	require.NoError(t, err)
	hub.relayed <- env

	got := readEnvelope(t, conn)
	assert.Equal(t, "comment:created", got.Event)

	var p syncDomain.Payload
	require.NoError(t, json.Unmarshal(got.Payload, &p))
	assert.Equal(t, "p1", p.ProjectID)
}

func TestHub_PublishNeverBlocksMutationPath(t *testing.T) {
	hub := NewHub()
	// No run loop draining: the broadcast queue fills up and further events
	// are dropped instead of stalling the caller.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Publish(syncDomain.ChangeEvent{
				Kind:    syncDomain.KindProjectUpdated,
				Payload: syncDomain.Payload{ID: "p1"},
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}
