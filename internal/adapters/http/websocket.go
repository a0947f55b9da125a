package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/usecases"
	"github.com/dirtio/soilmap/internal/pkg/logging"
	"github.com/dirtio/soilmap/internal/pkg/metrics"
)

// wsMessage is sent from client to server.
// {"action":"click","lat":37.77,"lng":-122.41}
type wsMessage struct {
	Action string   `json:"action"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

// wsEvent is pushed from server to client.
type wsEvent struct {
	Type       string              `json:"type"` // "resolved" | "accepted" | "error"
	Result     *domain.ClickResult `json:"result,omitempty"`
	Generation uint64              `json:"generation,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// sendBuffer is how many events a slow client may lag behind before
// events to it are dropped.
const sendBuffer = 16

// outbound is a queued frame. gen is the ClickResult generation it carries,
// zero for frames without one.
type outbound struct {
	gen  uint64
	data []byte
}

type wsClient struct {
	send chan outbound
	// lastGen is only touched by the connection's writer goroutine.
	lastGen uint64
}

// admit reports whether a frame should be written. Results older than one
// already delivered are dropped so the client never steps back in time.
func (cl *wsClient) admit(m outbound) bool {
	if m.gen == 0 {
		return true
	}
	if m.gen <= cl.lastGen {
		return false
	}
	cl.lastGen = m.gen
	return true
}

// Hub fans applied click results out to connected WebSocket clients.
// It implements ports.ClickObserver.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

func (h *Hub) add() *wsClient {
	cl := &wsClient{send: make(chan outbound, sendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	metrics.ActiveWebSockets.Inc()
	return cl
}

func (h *Hub) remove(cl *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
		metrics.ActiveWebSockets.Dec()
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClickResolved broadcasts the applied result without blocking.
func (h *Hub) ClickResolved(ctx context.Context, result domain.ClickResult) {
	data, err := json.Marshal(wsEvent{Type: "resolved", Result: &result})
	if err != nil {
		logging.FromContext(ctx).Error("ws marshal failed", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		select {
		case cl.send <- outbound{gen: result.Generation, data: data}:
		default:
			logging.FromContext(ctx).Warn("ws client lagging, dropping event", "generation", result.Generation)
		}
	}
}

// snapshot queues result for a single client behind any broadcasts already
// queued for it.
func (h *Hub) snapshot(ctx context.Context, cl *wsClient, result domain.ClickResult) {
	data, err := json.Marshal(wsEvent{Type: "resolved", Result: &result})
	if err != nil {
		logging.FromContext(ctx).Error("ws marshal failed", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[cl]; !ok {
		return
	}
	select {
	case cl.send <- outbound{gen: result.Generation, data: data}:
	default:
	}
}

// ClickOccurred is a no-op; clients only receive applied results.
func (h *Hub) ClickOccurred(context.Context, domain.Coordinate) {}

// WebSocketHandler returns a handler that pushes every applied ClickResult
// to the client and accepts clicks from it.
func WebSocketHandler(hub *Hub, resolver *usecases.ClickResolver) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("ws_remote", remoteAddr)
		ctx := logging.WithLogger(context.Background(), log)
		log.Info("ws client connected")

		cl := hub.add()
		var writeMu sync.Mutex
		write := func(msgType int, data []byte) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = c.SetWriteDeadline(time.Now().Add(10 * time.Second))
			return c.WriteMessage(msgType, data)
		}
		writeJSON := func(ev wsEvent) {
			data, err := json.Marshal(ev)
			if err == nil {
				_ = write(websocket.TextMessage, data)
			}
		}

		// Writer: relays hub events and keeps the connection alive.
		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case m, ok := <-cl.send:
					if !ok {
						return
					}
					if !cl.admit(m) {
						continue
					}
					if err := write(websocket.TextMessage, m.data); err != nil {
						return
					}
				case <-ticker.C:
					if err := write(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		// Late joiners see what is on the map right now. The client is already
		// registered, so a newer broadcast may overtake this; the writer drops it then.
		if cur, ok := resolver.Current(); ok {
			hub.snapshot(ctx, cl, cur)
		}

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				writeJSON(wsEvent{Type: "error", Error: "invalid JSON"})
				continue
			}

			switch m.Action {
			case "click":
				if m.Lat == nil || m.Lng == nil {
					writeJSON(wsEvent{Type: "error", Error: "lat and lng are required"})
					continue
				}
				gen := resolver.Click(ctx, domain.Coordinate{Lat: *m.Lat, Lng: *m.Lng})
				writeJSON(wsEvent{Type: "accepted", Generation: gen})
			default:
				writeJSON(wsEvent{Type: "error", Error: "unknown action: " + m.Action})
			}
		}

		hub.remove(cl)
		<-done
		_ = c.Close()
		log.Info("ws client disconnected")
	}
}
