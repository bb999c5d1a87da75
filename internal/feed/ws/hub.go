package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// client embrulha uma conexão com exclusão de escrita: Broadcast e as
// respostas de controle podem disparar de goroutines diferentes.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *client) sendJSON(v any) error {
	b, _ := json.Marshal(v)
	return c.send(b)
}

// Hub gerencia conexões WebSocket do feed e assinaturas por tópico.
// Tópicos válidos: "pool" e "bet:<id>".
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

func validTopic(topic string) bool {
	return topic == "pool" || strings.HasPrefix(topic, "bet:")
}

// HandleWS gerencia o ciclo de vida de uma conexão: lê mensagens de controle
// até o cliente desconectar e então o remove de todas as assinaturas.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.dropClient(c)
		conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			if !validTopic(msg.Topic) {
				_ = c.sendJSON(map[string]string{"type": "error", "reason": "unknown topic"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Topic]; !ok {
				h.subs[msg.Topic] = make(map[*client]struct{})
			}
			h.subs[msg.Topic][c] = struct{}{}
			h.mu.Unlock()
			_ = c.sendJSON(map[string]string{"type": "subscribed", "topic": msg.Topic})

		case "unsubscribe":
			h.mu.Lock()
			h.removeLocked(msg.Topic, c)
			h.mu.Unlock()
			_ = c.sendJSON(map[string]string{"type": "unsubscribed", "topic": msg.Topic})

		case "ping":
			_ = c.sendJSON(map[string]string{"type": "pong"})
		}
	}
}

func (h *Hub) removeLocked(topic string, c *client) {
	if set, ok := h.subs[topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, topic)
		}
	}
}

func (h *Hub) dropClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range h.subs {
		h.removeLocked(topic, c)
	}
}

// Broadcast entrega a atualização a todos os inscritos no tópico dela.
// Conexões cuja escrita falhar são descartadas das assinaturas.
func (h *Hub) Broadcast(update PoolUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.Topic]))
	for c := range h.subs[update.Topic] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range targets {
		if err := c.send(b); err != nil {
			h.dropClient(c)
		}
	}
}
