package ws

import "encoding/json"

// ClientMsg é o protocolo de controle do cliente WebSocket
type ClientMsg struct {
	Type  string `json:"type"`  // "subscribe" | "unsubscribe" | "ping"
	Topic string `json:"topic"` // "pool" ou "bet:<id>"
}

// PoolUpdate espelha o envelope publicado pelo engine-service no Redis
type PoolUpdate struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}
