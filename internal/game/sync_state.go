// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/combo"
	"github.com/okeyhub/okey101/internal/tile"
)

// ObfPlayerState is one seat as seen by the requesting player. Racks of other players are
// reduced to their size.
type ObfPlayerState struct {
	PlayerID       uuid.UUID         `json:"playerId"`
	Name           string            `json:"name"`
	Seat           int               `json:"seat"`
	HandSize       int               `json:"handSize"`
	Connected      bool              `json:"connected"`
	IsCurrentTurn  bool              `json:"isCurrentTurn"`
	Opened         bool              `json:"opened"`
	CommittedScore int               `json:"committedScore"`
	Committed      []LedgerEntry     `json:"committed,omitempty"`
	DiscardSize    int               `json:"discardSize"`
	DiscardTop     *EventTile        `json:"discardTop,omitempty"`
	Hand           tile.Hand         `json:"hand,omitempty"`
	Evaluation     *combo.Evaluation `json:"evaluation,omitempty"`
}

// ObfGameState is the room state from one player's point of view.
type ObfGameState struct {
	RoomID          uuid.UUID        `json:"roomId"`
	MatchID         uuid.UUID        `json:"matchId"`
	Status          Status           `json:"status"`
	Okey            tile.Okey        `json:"okey"`
	Indicator       tile.Tile        `json:"indicator"`
	Turn            TurnState        `json:"turn"`
	CurrentPlayerID uuid.UUID        `json:"currentPlayerId"`
	StockSize       int              `json:"stockSize"`
	Rules           HouseRules       `json:"rules"`
	Players         []ObfPlayerState `json:"players"`
	Result          *Result          `json:"result,omitempty"`
}

// currentState builds the state for forUser. Must run on the room loop.
func (r *Room) currentState(forUser uuid.UUID) ObfGameState {
	m := r.match
	obf := ObfGameState{
		RoomID:          r.ID,
		MatchID:         m.ID,
		Status:          m.Status,
		Okey:            m.Okey,
		Indicator:       m.Indicator,
		Turn:            m.Turn,
		CurrentPlayerID: m.CurrentPlayerID(),
		StockSize:       m.StockSize(),
		Rules:           m.Rules,
		Result:          m.Result,
	}

	for n := 1; n <= Seats; n++ {
		seat := m.Seat(n)
		ps := ObfPlayerState{
			PlayerID:       seat.Player,
			Seat:           n,
			HandSize:       seat.Hand.Count(),
			IsCurrentTurn:  n == m.Turn.CurrentPlayer,
			Opened:         m.Ledger.Opened(seat.Player),
			CommittedScore: m.Ledger.Total(seat.Player),
			Committed:      m.Ledger.Entries(seat.Player),
			DiscardSize:    len(seat.Discards),
		}
		if p := r.getPlayerByID(seat.Player); p != nil {
			ps.Name = p.Name
			ps.Connected = p.Connected
		}
		if len(seat.Discards) > 0 {
			ps.DiscardTop = buildEventTile(seat.Discards[len(seat.Discards)-1], true, nil)
		}
		if seat.Player == forUser {
			ps.Hand = seat.Hand.Clone()
			ev := r.evaluate(seat.Hand)
			ps.Evaluation = &ev
		}
		obf.Players = append(obf.Players, ps)
	}
	return obf
}
