// Package transport maintains the persistent websocket that carries change
// events from the server to one client session. It reconnects forever with
// bounded exponential backoff and detects silent failures through an
// app-level ping/pong heartbeat.
package transport

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	syncDomain "github.com/rcvieira/fluxo/domains/sync"
)

// Status is the connection state exposed to the application for UI
// indication.
type Status int32

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusReconnecting
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Meta is the reconnect metadata exposed for diagnostics.
type Meta struct {
	Attempts        int
	LastConnectedAt time.Time
	Transport       string
}

type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Token is appended as the token query parameter for authorization.
	Token string

	HeartbeatInterval time.Duration
	PongTimeout       time.Duration
	MinBackoff        time.Duration
	MaxBackoff        time.Duration

	// OnEvent receives decoded envelopes in the order the server sent them.
	OnEvent func(env syncDomain.Envelope)
	// OnStatusChange fires on every status transition.
	OnStatusChange func(status Status, meta Meta)
}

const (
	DefaultHeartbeatInterval = 25 * time.Second
	DefaultPongTimeout       = 10 * time.Second
	DefaultMinBackoff        = 500 * time.Millisecond
	DefaultMaxBackoff        = 30 * time.Second
)

type Transport struct {
	cfg    Config
	status atomic.Int32

	mu              sync.Mutex
	attempts        int
	lastConnectedAt time.Time
}

func New(cfg Config) *Transport {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = DefaultPongTimeout
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	t := &Transport{cfg: cfg}
	t.status.Store(int32(StatusConnecting))
	return t
}

func (t *Transport) Status() Status {
	return Status(t.status.Load())
}

func (t *Transport) Metadata() Meta {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Meta{
		Attempts:        t.attempts,
		LastConnectedAt: t.lastConnectedAt,
		Transport:       "websocket",
	}
}

func (t *Transport) setStatus(s Status) {
	old := Status(t.status.Swap(int32(s)))
	if old == s {
		return
	}
	logrus.Debugf("[Transport] %s -> %s", old, s)
	if t.cfg.OnStatusChange != nil {
		t.cfg.OnStatusChange(s, t.Metadata())
	}
}

func (t *Transport) dialURL() (string, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return "", err
	}
	if t.cfg.Token != "" {
		q := u.Query()
		q.Set("token", t.cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Run dials and serves the connection until ctx is cancelled, redialing on
// every failure. Retry count is unbounded; only the backoff is bounded.
func (t *Transport) Run(ctx context.Context) {
	target, err := t.dialURL()
	if err != nil {
		logrus.Errorf("[Transport] Invalid URL %q: %v", t.cfg.URL, err)
		t.setStatus(StatusDisconnected)
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.cfg.MinBackoff
	bo.MaxInterval = t.cfg.MaxBackoff
	bo.MaxElapsedTime = 0 // retry forever

	for {
		if ctx.Err() != nil {
			t.setStatus(StatusDisconnected)
			return
		}

		t.mu.Lock()
		t.attempts++
		t.mu.Unlock()

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
		if err != nil {
			logrus.Debugf("[Transport] Dial failed: %v", err)
			select {
			case <-ctx.Done():
				t.setStatus(StatusDisconnected)
				return
			case <-time.After(bo.NextBackOff()):
			}
			continue
		}

		bo.Reset()
		t.mu.Lock()
		t.lastConnectedAt = time.Now()
		t.mu.Unlock()
		t.setStatus(StatusConnected)

		t.serve(ctx, conn)

		if ctx.Err() != nil {
			t.setStatus(StatusDisconnected)
			return
		}
		t.setStatus(StatusReconnecting)
	}
}

// serve pumps one live connection: a heartbeat goroutine writes pings, the
// read loop decodes envelopes and hands them over in arrival order.
func (t *Transport) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	var lastPong atomic.Int64
	lastPong.Store(time.Now().UnixNano())

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(t.cfg.HeartbeatInterval)
		defer ticker.Stop()
		ping, _ := json.Marshal(syncDomain.Envelope{Event: string(syncDomain.KindPing)})
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				silence := time.Since(time.Unix(0, lastPong.Load()))
				if silence > t.cfg.HeartbeatInterval+t.cfg.PongTimeout {
					logrus.Debugf("[Transport] No pong for %v, dropping connection", silence)
					_ = conn.Close()
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.PongTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env syncDomain.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logrus.Debugf("[Transport] Unmarshal error: %v", err)
			continue
		}

		if env.Event == string(syncDomain.KindPong) {
			lastPong.Store(time.Now().UnixNano())
			continue
		}

		if t.cfg.OnEvent != nil {
			t.cfg.OnEvent(env)
		}
	}
}
