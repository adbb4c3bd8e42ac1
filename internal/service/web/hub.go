// FILE: internal/service/web/hub.go
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/proxypool/model"
)

// Row 状态
const (
	RowTesting = "testing"
	RowSuccess = "success"
	RowFailure = "failure"
)

// Row 是结果表中的一行。
type Row struct {
	ID     string                  `json:"id"`
	Proxy  model.ProxyDescriptor   `json:"proxy"`
	Status string                  `json:"status"`
	Result *model.ValidationResult `json:"result,omitempty"`
}

// WebSocketMessage 定义了 WebSocket 消息的通用格式
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the results table and the set of active clients, and
// broadcasts every row change to the clients. It implements model.Display.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
	// done 在 Run 返回后关闭
	done     chan struct{}
	stopOnce sync.Once

	rowsMu sync.RWMutex
	order  []string
	rows   map[string]*Row
}

var _ model.Display = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
		done:       make(chan struct{}),
		rows:       make(map[string]*Row),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket client registered.")
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				logger.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket client unregistered.")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				err := conn.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					logger.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).Msg("Error writing to websocket client.")
					// Assume client is disconnected, let the read pump handle unregistering
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

// InsertRow appends a "testing" row for d and returns its id.
func (h *Hub) InsertRow(d model.ProxyDescriptor) string {
	row := &Row{
		ID:     uuid.NewString(),
		Proxy:  d,
		Status: RowTesting,
	}

	h.rowsMu.Lock()
	h.rows[row.ID] = row
	h.order = append(h.order, row.ID)
	snapshot := *row
	h.rowsMu.Unlock()

	h.send("row_insert", snapshot)
	return row.ID
}

// UpdateRow stores r on the row. Updates for unknown or deleted rows are ignored.
func (h *Hub) UpdateRow(rowID string, r model.ValidationResult) {
	h.rowsMu.Lock()
	row, ok := h.rows[rowID]
	if !ok {
		h.rowsMu.Unlock()
		logger.Debug().Str("row_id", rowID).Msg("Hub: Ignoring update for unknown row.")
		return
	}
	result := r
	row.Result = &result
	row.Status = RowFailure
	if r.Succeeded() {
		row.Status = RowSuccess
	}
	snapshot := *row
	h.rowsMu.Unlock()

	h.send("row_update", snapshot)
}

func (h *Hub) DeleteRow(rowID string) {
	h.rowsMu.Lock()
	if _, ok := h.rows[rowID]; !ok {
		h.rowsMu.Unlock()
		return
	}
	delete(h.rows, rowID)
	for i, id := range h.order {
		if id == rowID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.rowsMu.Unlock()

	h.send("row_delete", map[string]string{"id": rowID})
}

// Rows returns a copy of the table in insertion order.
func (h *Hub) Rows() []Row {
	h.rowsMu.RLock()
	defer h.rowsMu.RUnlock()
	out := make([]Row, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, *h.rows[id])
	}
	return out
}

// BroadcastStatusUpdate 广播状态更新消息
func (h *Hub) BroadcastStatusUpdate(status interface{}) {
	h.send("status_update", status)
}

func (h *Hub) send(kind string, data interface{}) {
	jsonMsg, err := json.Marshal(WebSocketMessage{Type: kind, Data: data})
	if err != nil {
		logger.Error().Err(err).Str("type", kind).Msg("Hub: Failed to marshal message")
		return
	}

	select {
	case h.broadcast <- jsonMsg:
	default:
		// Clients resync from /api/rows.
		logger.Warn().Str("type", kind).Msg("Hub: Broadcast channel is full, dropping message.")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins
}

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade websocket")
		return
	}
	select {
	case hub.register <- conn:
	case <-hub.done:
		conn.Close()
		return
	}

	// This is a read pump. It's needed to detect when a client closes the connection.
	go func() {
		defer func() {
			select {
			case hub.unregister <- conn:
			case <-hub.done:
				conn.Close()
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn().Err(err).Msg("Unexpected websocket close error")
				}
				break
			}
		}
	}()
}
