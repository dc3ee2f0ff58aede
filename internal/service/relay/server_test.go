package relay

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsend/internal/model"
)

// memQueue is an in-process Queue for tests.
type memQueue struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newMemQueue() *memQueue {
	return &memQueue{lists: make(map[string][]string)}
}

func (q *memQueue) RPush(_ context.Context, key string, value ...any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range value {
		switch b := v.(type) {
		case []byte:
			q.lists[key] = append(q.lists[key], string(b))
		default:
			q.lists[key] = append(q.lists[key], fmt.Sprint(v))
		}
	}
	return nil
}

func (q *memQueue) LRange(_ context.Context, key string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.lists[key]...), nil
}

func (q *memQueue) Del(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.lists, key)
	return nil
}

func newWSRelay(t *testing.T) string {
	t.Helper()
	s := NewHttpServer(nil, newMemQueue(), nil)
	r := mux.NewRouter()
	r.HandleFunc("/init", s.HandleInitWS())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/init"
}

func dial(t *testing.T, wsURL, identity string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?identity="+identity, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConcurrentInitAndSend(t *testing.T) {
	wsURL := newWSRelay(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(
				fmt.Sprintf("%s?identity=client-%d", wsURL, i), nil)
			assert.NoError(t, err)
			if err != nil {
				return
			}
			defer conn.Close()
			// Every client immediately writes to an offline recipient,
			// driving the queue path from the reader goroutines.
			assert.NoError(t, conn.WriteJSON(&model.RelayMessage{
				From:       fmt.Sprintf("client-%d", i),
				To:         "offline",
				ContentRef: "QmRef",
			}))
		}(i)
	}
	wg.Wait()
}

func TestForwardBetweenConnectedClients(t *testing.T) {
	wsURL := newWSRelay(t)

	alice := dial(t, wsURL, "alice")
	bob := dial(t, wsURL, "bob")

	sent := model.RelayMessage{From: "alice", To: "bob", ContentRef: "QmRef", TransferRef: "0xtx"}
	require.NoError(t, alice.WriteJSON(&sent))

	bob.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got model.RelayMessage
	require.NoError(t, bob.ReadJSON(&got))
	assert.Equal(t, sent, got)
}

func TestOfflineMessagesDeliveredOnConnect(t *testing.T) {
	wsURL := newWSRelay(t)

	alice := dial(t, wsURL, "alice")
	sent := model.RelayMessage{From: "alice", To: "bob", ContentRef: "QmRef"}
	require.NoError(t, alice.WriteJSON(&sent))

	// Give the reader goroutine time to queue the message before bob shows
	// up; connecting then drains the queue to him.
	require.Eventually(t, func() bool {
		bob, _, err := websocket.DefaultDialer.Dial(wsURL+"?identity=bob", nil)
		if err != nil {
			return false
		}
		defer bob.Close()
		bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		var got model.RelayMessage
		return bob.ReadJSON(&got) == nil && got.ContentRef == sent.ContentRef
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDuplicateIdentityRejected(t *testing.T) {
	wsURL := newWSRelay(t)

	dial(t, wsURL, "alice")
	_, _, err := websocket.DefaultDialer.Dial(wsURL+"?identity=alice", nil)
	assert.Error(t, err)
}
