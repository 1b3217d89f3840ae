package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Player is a seated participant of a room.
type Player struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Seat      int             `json:"seat"`
	Connected bool            `json:"connected"`
	Conn      *websocket.Conn `json:"-"`
	// Outbox feeds the connection's single writer. Messages are sent in queue order.
	Outbox chan<- []byte `json:"-"`
}
