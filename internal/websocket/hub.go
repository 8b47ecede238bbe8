// Package websocket доставляет состояние автосохранения в открытые вкладки редактора.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const sendBuffer = 64

var _ interfaces.SaveStateNotifier = (*Hub)(nil)

// Client одно соединение, подписанное на сессию редактора.
type Client struct {
	SessionID uuid.UUID
	Conn      *websocket.Conn
	send      chan []byte
}

// SaveStateMessage сообщение, которое получает UI.
type SaveStateMessage struct {
	Type      string           `json:"type"`
	SessionID uuid.UUID        `json:"session_id"`
	State     models.SaveState `json:"state"`
	Error     string           `json:"error,omitempty"`
	At        time.Time        `json:"at"`
}

// Hub управляет соединениями. На одну сессию редактора может быть несколько вкладок.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub создает и запускает хаб.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("SaveStateHub"),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.SessionID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.SessionID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.Stringer("sessionID", client.SessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.SessionID]; ok {
				if _, exists := set[client]; exists {
					delete(set, client)
					close(client.send)
					if len(set) == 0 {
						delete(h.clients, client.SessionID)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", zap.Stringer("sessionID", client.SessionID))

		case <-h.done:
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[uuid.UUID]map[*Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// RegisterClient регистрирует клиента. После Stop ничего не делает.
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// UnregisterClient удаляет клиента.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Stop закрывает все соединения и останавливает цикл.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount число подключений сессии.
func (h *Hub) ClientCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// SendToSession ставит сообщение в очередь всех вкладок сессии.
// Возвращает число клиентов, которым сообщение поставлено.
func (h *Hub) SendToSession(sessionID uuid.UUID, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for client := range h.clients[sessionID] {
		select {
		case client.send <- message:
			sent++
		default:
			// Медленный клиент пропускает сообщение, следующее состояние придет позже
			h.logger.Warn("Send queue is full, dropping message", zap.Stringer("sessionID", sessionID))
		}
	}
	return sent
}

// NotifySaveState реализует interfaces.SaveStateNotifier.
func (h *Hub) NotifySaveState(sessionID uuid.UUID, state models.SaveState, err error) {
	msg := SaveStateMessage{Type: "save_state", SessionID: sessionID, State: state, At: time.Now().UTC()}
	if err != nil {
		msg.Error = err.Error()
		if userMsg := models.UserMessage(err); userMsg != "" {
			msg.Error = userMsg
		}
	}
	data, marshalErr := json.Marshal(msg)
	if marshalErr != nil {
		h.logger.Error("Failed to marshal save state message", zap.Error(marshalErr))
		return
	}
	h.SendToSession(sessionID, data)
}
