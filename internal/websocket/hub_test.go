package websocket

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"rafi-backend/internal/logger"
)

type stubTokens map[string]uuid.UUID

func (s stubTokens) ParseUserID(token string) (uuid.UUID, error) {
	id, ok := s[token]
	if !ok {
		return uuid.Nil, errors.New("invalid token")
	}
	return id, nil
}

// closedAddr returns an address nothing listens on, so subscriptions fail
// fast without a Redis server.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve address: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func newTestHub(t *testing.T, tokens stubTokens) (*Hub, *httptest.Server) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: closedAddr(t), MaxRetries: -1})
	hub := NewHub(rdb, tokens, logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		rdb.Close()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return conn
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (h *Hub) subscribed(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.cancelFuncs[userID]
	return ok
}

func TestHub_RejectsMissingOrInvalidToken(t *testing.T) {
	userID := uuid.New()
	hub, srv := newTestHub(t, stubTokens{"good": userID})

	for name, token := range map[string]string{"missing": "", "invalid": "forged"} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
			if !errors.Is(err, websocket.ErrBadHandshake) {
				t.Fatalf("Expected bad handshake, got %v", err)
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("Expected 401, got %+v", resp)
			}
		})
	}

	if hub.Connections(userID) != 0 {
		t.Errorf("Rejected sockets must not be registered")
	}
}

func TestHub_OneSubscriptionPerUser(t *testing.T) {
	userID := uuid.New()
	hub, srv := newTestHub(t, stubTokens{"good": userID})

	first := dial(t, srv, "good")
	eventually(t, func() bool { return hub.Connections(userID) == 1 }, "first socket was not registered")
	if !hub.subscribed(userID) {
		t.Fatal("Expected a subscription once the first socket connects")
	}

	second := dial(t, srv, "good")
	eventually(t, func() bool { return hub.Connections(userID) == 2 }, "second socket was not registered")

	hub.mu.RLock()
	subs := len(hub.cancelFuncs)
	hub.mu.RUnlock()
	if subs != 1 {
		t.Fatalf("Expected one subscription for the user, got %d", subs)
	}

	first.Close()
	eventually(t, func() bool { return hub.Connections(userID) == 1 }, "first socket was not unregistered")
	if !hub.subscribed(userID) {
		t.Fatal("Subscription must stay while a socket remains open")
	}

	second.Close()
	eventually(t, func() bool { return hub.Connections(userID) == 0 }, "second socket was not unregistered")
	if hub.subscribed(userID) {
		t.Fatal("Subscription must be cancelled when the last socket closes")
	}
}

func TestHub_UsersAreIsolated(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	hub, srv := newTestHub(t, stubTokens{"alice": alice, "bob": bob})

	conn := dial(t, srv, "alice")
	defer conn.Close()

	eventually(t, func() bool { return hub.Connections(alice) == 1 }, "socket was not registered")
	if hub.Connections(bob) != 0 || hub.subscribed(bob) {
		t.Error("Another user's socket must not register under bob")
	}
}

func TestHub_CloseDropsEverything(t *testing.T) {
	userID := uuid.New()
	hub, srv := newTestHub(t, stubTokens{"good": userID})

	conn := dial(t, srv, "good")
	defer conn.Close()
	eventually(t, func() bool { return hub.Connections(userID) == 1 }, "socket was not registered")

	hub.Close()

	if hub.Connections(userID) != 0 || hub.subscribed(userID) {
		t.Fatal("Close must drop sockets and subscriptions")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the client side to observe the closed socket")
	}
}
