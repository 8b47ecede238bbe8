package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong.
	pongWait = 60 * time.Second
	// Период пингов, меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Клиент ничего не присылает, кроме служебных кадров.
	maxMessageSize = 512
)

// NewUpgrader создает upgrader. Пустой список origins разрешает любой источник.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return allowed[r.Header.Get("Origin")]
		},
	}
}

// ServeWS переводит запрос в WebSocket и подписывает соединение на сессию.
func (h *Hub) ServeWS(upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		h.logger.Warn("Failed to upgrade connection", zap.Stringer("sessionID", sessionID), zap.Error(err))
		return err
	}
	client := &Client{SessionID: sessionID, Conn: conn, send: make(chan []byte, sendBuffer)}
	h.RegisterClient(client)

	log := h.logger.With(zap.Stringer("sessionID", sessionID))
	log.Info("WebSocket connection established")
	go client.writePump(log)
	go client.readPump(h, log)
	return nil
}

// readPump читает только служебные кадры и отслеживает разрыв.
func (c *Client) readPump(h *Hub, logger *zap.Logger) {
	defer func() {
		h.UnregisterClient(c)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump отправляет сообщения из send и пингует клиента.
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("Failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
