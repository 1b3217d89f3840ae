package models

import "encoding/json"

// GameAction captures a player's in-game move. Payload is decoded by the room according to
// ActionType.
type GameAction struct {
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
