// internal/handlers/game_server.go
package handlers

import (
	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/auth"
	"github.com/okeyhub/okey101/internal/combo"
	"github.com/okeyhub/okey101/internal/deck"
	"github.com/okeyhub/okey101/internal/game"
	"github.com/okeyhub/okey101/internal/lobby"
	"github.com/sirupsen/logrus"
)

// GameServer holds the in-memory lobbies and rooms and opens a room when a lobby fills.
type GameServer struct {
	Logger    *logrus.Logger
	Lobbies   *lobby.LobbyStore
	Rooms     *game.RoomStore
	Issuer    *auth.Issuer
	Evaluator *combo.Evaluator
	Rules     game.HouseRules

	// Optional journals handed to every room.
	Publisher game.ActionPublisher
	Recorders []game.MatchRecorder
	// Shuffler overrides the deck shuffle; nil uses the default.
	Shuffler deck.Shuffler
}

func NewGameServer(logger *logrus.Logger, issuer *auth.Issuer, evaluator *combo.Evaluator, rules game.HouseRules) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameServer{
		Logger:    logger,
		Lobbies:   lobby.NewLobbyStore(),
		Rooms:     game.NewRoomStore(),
		Issuer:    issuer,
		Evaluator: evaluator,
		Rules:     rules,
	}
}

// NewRoomFromLobby deals a match for a full lobby and starts its room.
func (gs *GameServer) NewRoomFromLobby(l *lobby.Lobby) (*game.Room, error) {
	status := l.Status()
	room, err := game.NewRoom(game.RoomConfig{
		LobbyID:  l.ID,
		Players:  l.Players(),
		First:    1,
		Rules:    status.HouseRules,
		Shuffler: gs.Shuffler,
		Logger:   gs.Logger,
	})
	if err != nil {
		return nil, err
	}
	room.BroadcastFn = createBroadcastFunc(room, gs.Logger)
	room.BroadcastToPlayerFn = createBroadcastToPlayerFunc(room, gs.Logger)
	room.Evaluator = gs.Evaluator
	room.Recorders = gs.Recorders
	room.Publisher = gs.Publisher
	room.OnGameEnd = func(roomID, lobbyID uuid.UUID, res game.Result) {
		gs.Logger.WithFields(logrus.Fields{"room": roomID, "status": res.Status}).Info("room finished")
		gs.Lobbies.DeleteLobby(lobbyID)
		gs.Rooms.DeleteRoom(roomID)
	}

	l.MarkInGame(room.ID)
	gs.Rooms.AddRoom(room)
	room.Start()
	gs.Logger.Infof("Room %s opened for lobby %s", room.ID, l.ID)
	return room, nil
}

// Shutdown closes every room and waits for their journals to drain.
func (gs *GameServer) Shutdown() {
	for _, room := range gs.Rooms.Rooms() {
		gs.Rooms.DeleteRoom(room.ID)
		room.Wait()
	}
}

// createBroadcastFunc returns a function suitable for Room.BroadcastFn. The room calls it
// from its loop, so messages are queued to each connection's writer in event order.
func createBroadcastFunc(room *game.Room, logger *logrus.Logger) func(ev game.GameEvent) {
	return func(ev game.GameEvent) {
		var msgBytes []byte
		for _, p := range room.Players {
			if !p.Connected || p.Outbox == nil {
				continue
			}
			if msgBytes == nil {
				msgBytes = game.EncodeEvent(ev)
			}
			enqueue(p.Outbox, p.Conn, msgBytes, room.ID, logger)
		}
	}
}

// createBroadcastToPlayerFunc returns a function suitable for Room.BroadcastToPlayerFn.
func createBroadcastToPlayerFunc(room *game.Room, logger *logrus.Logger) func(uuid.UUID, game.GameEvent) {
	return func(targetPlayerID uuid.UUID, ev game.GameEvent) {
		for _, p := range room.Players {
			if p.ID == targetPlayerID && p.Connected && p.Outbox != nil {
				enqueue(p.Outbox, p.Conn, game.EncodeEvent(ev), room.ID, logger)
				return
			}
		}
	}
}
