// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the room handler.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError websocket.StatusCode = 3001 // Seat ticket was missing, invalid or expired.
	NotSeatedError        websocket.StatusCode = 3002 // Ticket holder has no seat in the room.
	InvalidRoomIDError    websocket.StatusCode = 3003 // Target room does not exist.
	RoomClosedError       websocket.StatusCode = 3004 // The room's match is over.
	SlowConsumerError     websocket.StatusCode = 3005 // Client fell too far behind the room's events.
)
