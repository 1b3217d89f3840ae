// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/combo"
	"github.com/okeyhub/okey101/internal/tile"
)

// GameEventType names an event pushed to clients. Types prefixed with private_ go to a
// single player.
type GameEventType string

const (
	EventPrivateGameStart  GameEventType = "game_start"          // private deal: rack, okey, indicator
	EventGamePlayerTurn    GameEventType = "game_player_turn"    // whose turn it is
	EventPlayerDraw        GameEventType = "player_draw"         // public draw; stock tiles stay hidden
	EventPrivateDraw       GameEventType = "private_draw"        // the drawn tile, to the drawer
	EventPlayerDiscard     GameEventType = "player_discard"      // discarded tile, face up
	EventPlayerCommit      GameEventType = "player_commit"       // combinations laid on the table
	EventGameDeckEmpty     GameEventType = "game_deck_empty"     // a draw hit the empty stock
	EventGameEnd           GameEventType = "game_end"            // result of the match
	EventPrivateSyncState  GameEventType = "private_sync_state"  // full state from the player's view
	EventPrivateActionFail GameEventType = "private_action_fail" // rejected action
	EventPrivateEvaluation GameEventType = "private_evaluation"  // greedy cover of the player's rack
)

// EventUser identifies the acting player.
type EventUser struct {
	ID   uuid.UUID `json:"id"`
	Seat int       `json:"seat,omitempty"`
}

// EventTile describes a tile in an event. Hidden tiles carry only their ID.
type EventTile struct {
	ID     uuid.UUID   `json:"id"`
	Colour tile.Colour `json:"colour,omitempty"`
	Number int         `json:"number,omitempty"`
	Joker  bool        `json:"joker,omitempty"`
	Slot   *int        `json:"slot,omitempty"`
}

// GameEvent is the envelope of every message pushed to clients.
type GameEvent struct {
	Type         GameEventType     `json:"type"`
	User         *EventUser        `json:"user,omitempty"`
	Tile         *EventTile        `json:"tile,omitempty"`
	Source       string            `json:"source,omitempty"`
	Combinations []LedgerEntry     `json:"combinations,omitempty"`
	Hand         tile.Hand         `json:"hand,omitempty"`
	Evaluation   *combo.Evaluation `json:"evaluation,omitempty"`
	Result       *Result           `json:"result,omitempty"`
	Error        *Error            `json:"error,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`

	State *ObfGameState `json:"state,omitempty"`
}

func buildEventTile(t tile.Tile, reveal bool, slot *int) *EventTile {
	ev := &EventTile{ID: t.ID, Slot: slot}
	if reveal {
		ev.Colour = t.Colour
		ev.Number = t.Number
		ev.Joker = t.Joker
	}
	return ev
}
