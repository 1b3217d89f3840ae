package game

import (
	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/combo"
	"github.com/okeyhub/okey101/internal/tile"
)

// LedgerEntry is one combination a player laid on the table, with its server-computed score.
type LedgerEntry struct {
	Kind  combo.Kind  `json:"kind"`
	Score int         `json:"score"`
	Tiles []tile.Tile `json:"tiles"`
	Turn  int         `json:"turn"`
}

// Ledger records committed combinations per player. It is append-only within a match.
type Ledger struct {
	entries map[uuid.UUID][]LedgerEntry
	totals  map[uuid.UUID]int
	tiles   int
}

func NewLedger() *Ledger {
	l := &Ledger{}
	l.Reset()
	return l
}

// Append records entries for player.
func (l *Ledger) Append(player uuid.UUID, entries ...LedgerEntry) {
	for _, e := range entries {
		l.entries[player] = append(l.entries[player], e)
		l.totals[player] += e.Score
		l.tiles += len(e.Tiles)
	}
}

// Entries returns a copy of player's committed combinations in commit order.
func (l *Ledger) Entries(player uuid.UUID) []LedgerEntry {
	out := make([]LedgerEntry, len(l.entries[player]))
	copy(out, l.entries[player])
	return out
}

// Total returns the cumulative committed score of player.
func (l *Ledger) Total(player uuid.UUID) int {
	return l.totals[player]
}

// Opened reports whether player has committed at least once.
func (l *Ledger) Opened(player uuid.UUID) bool {
	return len(l.entries[player]) > 0
}

// CommittedCount returns the number of tiles on the table.
func (l *Ledger) CommittedCount() int {
	return l.tiles
}

// Reset clears the ledger for a new match.
func (l *Ledger) Reset() {
	l.entries = make(map[uuid.UUID][]LedgerEntry)
	l.totals = make(map[uuid.UUID]int)
	l.tiles = 0
}
