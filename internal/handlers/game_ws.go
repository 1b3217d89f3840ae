// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/game"
	"github.com/okeyhub/okey101/internal/middleware"
	"github.com/okeyhub/okey101/internal/models"
	"github.com/sirupsen/logrus"
)

// GameMessage is an incoming websocket message. Payload is decoded by the room.
type GameMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomWSHandler upgrades the connection for a seat in /ws/{roomID}, attaches it to the room
// and feeds the player's messages into the room queue until the socket closes.
func RoomWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := uuid.Parse(r.PathValue("roomID"))
		if err != nil {
			http.Error(w, "Invalid room id format", http.StatusBadRequest)
			return
		}
		room, ok := gs.Rooms.GetRoom(roomID)
		if !ok {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for room %s: %v", roomID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "game" {
			c.Close(BadSubprotocolError, "Client must use the 'game' subprotocol.")
			return
		}

		ticket, err := ticketFromRequest(gs.Issuer, r)
		if err != nil {
			logger.Warnf("Ticket rejected for room %s: %v", roomID, err)
			c.Close(InvalidAuthTokenError, "Authentication failed.")
			return
		}
		if !room.HasPlayer(ticket.UserID) {
			c.Close(NotSeatedError, "You are not a player in this room.")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		cw := newConnWriter(c, roomID, logger)
		if err := room.Connect(ctx, ticket.UserID, c, cw.out); err != nil {
			cw.close()
			c.Close(RoomClosedError, "The match is over.")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, roomID, ticket.UserID)

		readErr := readGameMessages(ctx, c, cw, room, ticket.UserID, logger)

		dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := room.Disconnect(dctx, ticket.UserID); err != nil && !errors.Is(err, game.ErrRoomClosed) {
			logger.Warnf("Disconnect of %s in room %s failed: %v", ticket.UserID, roomID, err)
		}
		dcancel()
		cw.close()
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, roomID, ticket.UserID, readErr)

		select {
		case <-room.Done():
			c.Close(websocket.StatusNormalClosure, "The match is over.")
		default:
		}
	}
}

// readGameMessages reads until the socket fails or the room closes. Rejected actions are
// reported by the room itself, so only transport errors end the loop. Replies go through w
// so they stay ordered with the room's events.
func readGameMessages(ctx context.Context, c *websocket.Conn, w *connWriter, room *game.Room, userID uuid.UUID, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from user %s in room %s. Ignoring.", msgType, userID, room.ID)
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(w, logger, "Invalid JSON format.")
			continue
		}
		logger.Debugf("Received action '%s' from user %s in room %s.", msg.Type, userID, room.ID)

		if msg.Type == "ping" {
			sendWsMessage(w, logger, map[string]string{"type": "pong"})
			continue
		}

		err = room.HandlePlayerAction(ctx, userID, models.GameAction{ActionType: msg.Type, Payload: msg.Payload})
		switch {
		case err == nil, game.IsRejection(err):
		case errors.Is(err, game.ErrRoomClosed), ctx.Err() != nil:
			return nil
		default:
			sendWsError(w, logger, fmt.Sprintf("Action %s failed.", msg.Type))
		}
	}
}

// sendWsMessage marshals a message and queues it for the WebSocket client.
func sendWsMessage(w *connWriter, logger *logrus.Logger, message interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		logger.Errorf("Error marshaling WebSocket message: %v", err)
		return
	}
	w.send(msgBytes)
}

// sendWsError sends a structured error message to the client.
func sendWsError(w *connWriter, logger *logrus.Logger, errorMsg string) {
	sendWsMessage(w, logger, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
