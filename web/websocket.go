package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"profitcal/metrics"
	"profitcal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 仅本机使用，允许所有来源
	},
}

// WebSocketHub WebSocket 中心，管理所有活跃连接
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWebSocketHub 创建并启动 WebSocket 中心
func NewWebSocketHub() *WebSocketHub {
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
	go h.run()
	return h
}

func (h *WebSocketHub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			metrics.WebSocketConnected()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				metrics.WebSocketDisconnected()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					delete(h.clients, conn)
					conn.Close()
					metrics.WebSocketDisconnected()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast 向所有客户端广播一条带类型标记的消息
func (h *WebSocketHub) Broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": payload,
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Channel 满了，丢弃消息
	}
}

// handleWebSocket 处理 WebSocket 升级；?subscribe_logs=true 时推送实时日志
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	s.hub.register <- conn

	var logCh chan *storage.LogRecord
	if c.Query("subscribe_logs") == "true" && s.logStorage != nil {
		logCh = s.logStorage.Subscribe()
		defer s.logStorage.Unsubscribe(logCh)
	}

	if logCh != nil {
		go func() {
			for logRecord := range logCh {
				message := map[string]interface{}{
					"type": "log",
					"data": map[string]interface{}{
						"id":        logRecord.ID,
						"timestamp": logRecord.Timestamp,
						"level":     logRecord.Level,
						"message":   logRecord.Message,
					},
				}
				data, err := json.Marshal(message)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		}()
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.unregister <- conn
			break
		}
	}
}
