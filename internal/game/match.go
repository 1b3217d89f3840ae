// internal/game/match.go
package game

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/combo"
	"github.com/okeyhub/okey101/internal/deck"
	"github.com/okeyhub/okey101/internal/tile"
)

// Seats is the number of players in a match. Seats are numbered 1..Seats.
const Seats = deck.Seats

// Source is where a player draws from.
type Source int

const (
	SourceStock Source = iota
	SourceLeftDiscard
)

func (s Source) String() string {
	if s == SourceLeftDiscard {
		return "left_discard"
	}
	return "stock"
}

func (s *Source) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stock", "stockpile":
		*s = SourceStock
	case "left_discard", "discard":
		*s = SourceLeftDiscard
	default:
		return fmt.Errorf("unknown draw source %q", b)
	}
	return nil
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the lifecycle stage of a match.
type Status int

const (
	StatusActive Status = iota
	StatusFinished
	StatusExhausted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusFinished:
		return "finished"
	case StatusExhausted:
		return "stock_exhausted"
	case StatusAborted:
		return "aborted"
	default:
		return "active"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for _, st := range []Status{StatusActive, StatusFinished, StatusExhausted, StatusAborted} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown match status %q", b)
}

// TurnState is the admission control of every action.
type TurnState struct {
	CurrentPlayer int  `json:"currentPlayer"`
	DrawRight     bool `json:"drawRight"`
	HasDrawn      bool `json:"hasDrawn"`
	TurnCounter   int  `json:"turnCounter"`
}

// Seat is one player's private table position.
type Seat struct {
	Player   uuid.UUID
	Hand     tile.Hand
	Discards []tile.Tile // face-up pile, top at the end
}

// Span selects rack slots Start..End inclusive for a commit.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result is the outcome of a match. Winner is uuid.Nil when nobody finished.
type Result struct {
	MatchID uuid.UUID         `json:"matchId"`
	Status  Status            `json:"status"`
	Winner  uuid.UUID         `json:"winner"`
	Reason  string            `json:"reason,omitempty"`
	Scores  map[uuid.UUID]int `json:"scores,omitempty"`
	Turns   int               `json:"turns"`
}

// Opening is what StartMatch hands to the transport: the okey, its indicator, each player's
// starting rack and the stock size.
type Opening struct {
	Okey      tile.Okey               `json:"okey"`
	Indicator tile.Tile               `json:"indicator"`
	Hands     map[uuid.UUID]tile.Hand `json:"hands"`
	StockSize int                     `json:"stockSize"`
	First     uuid.UUID               `json:"first"`
}

// Match is the authoritative state of one match. It is not safe for concurrent use; a Room
// serialises every call.
type Match struct {
	ID        uuid.UUID
	Rules     HouseRules
	Okey      tile.Okey
	Indicator tile.Tile
	Turn      TurnState
	First     int
	Status    Status
	Ledger    *Ledger
	Result    *Result

	seats [Seats]*Seat
	stock []tile.Tile
	// freshDiscard is true while the latest discard is still on its pile unclaimed.
	freshDiscard bool
}

// StartMatch builds and deals a new match. first is the 1-based seat of the first player,
// who is dealt 15 tiles and opens by discarding. A nil shuffler uses deck.FastShuffler.
func StartMatch(players [Seats]uuid.UUID, first int, s deck.Shuffler, rules HouseRules) (*Match, error) {
	if first < 1 || first > Seats {
		return nil, reject(ErrDeckConstruction, "first seat %d out of range", first)
	}
	seen := make(map[uuid.UUID]bool, Seats)
	for _, p := range players {
		if p == uuid.Nil || seen[p] {
			return nil, reject(ErrDeckConstruction, "players must be %d distinct ids", Seats)
		}
		seen[p] = true
	}

	d, err := deck.Build(s)
	if err != nil {
		return nil, reject(ErrDeckConstruction, "%v", err)
	}
	hands, stock, err := deck.Deal(d.Tiles, first-1)
	if err != nil {
		return nil, reject(ErrDeckConstruction, "%v", err)
	}

	m := &Match{
		ID:        uuid.New(),
		Rules:     rules,
		Okey:      d.Okey,
		Indicator: d.Indicator,
		Turn:      TurnState{CurrentPlayer: first},
		First:     first,
		Status:    StatusActive,
		Ledger:    NewLedger(),
		stock:     stock,
	}
	for i := range m.seats {
		m.seats[i] = &Seat{Player: players[i], Hand: hands[i]}
	}
	if n := m.TileCount(); n != tile.Total {
		return nil, reject(ErrDeckConstruction, "dealt match holds %d tiles", n)
	}
	return m, nil
}

// Opening reports the deal.
func (m *Match) Opening() Opening {
	o := Opening{
		Okey:      m.Okey,
		Indicator: m.Indicator,
		Hands:     make(map[uuid.UUID]tile.Hand, Seats),
		StockSize: len(m.stock),
		First:     m.seats[m.First-1].Player,
	}
	for _, s := range m.seats {
		o.Hands[s.Player] = s.Hand.Clone()
	}
	return o
}

// SeatOf returns the 1-based seat of player, or 0.
func (m *Match) SeatOf(player uuid.UUID) int {
	for i, s := range m.seats {
		if s.Player == player {
			return i + 1
		}
	}
	return 0
}

// Seat returns the seat numbered n.
func (m *Match) Seat(n int) *Seat {
	if n < 1 || n > Seats {
		return nil
	}
	return m.seats[n-1]
}

// Players returns the seated players in seat order.
func (m *Match) Players() [Seats]uuid.UUID {
	var out [Seats]uuid.UUID
	for i, s := range m.seats {
		out[i] = s.Player
	}
	return out
}

// Hand returns a copy of player's rack.
func (m *Match) Hand(player uuid.UUID) (tile.Hand, bool) {
	n := m.SeatOf(player)
	if n == 0 {
		return nil, false
	}
	return m.seats[n-1].Hand.Clone(), true
}

// StockSize returns the number of undrawn tiles.
func (m *Match) StockSize() int {
	return len(m.stock)
}

// CurrentPlayerID returns the player whose turn it is.
func (m *Match) CurrentPlayerID() uuid.UUID {
	return m.seats[m.Turn.CurrentPlayer-1].Player
}

// LeftOf returns the seat whose discards seat n may take: the one that plays just before it.
func LeftOf(n int) int {
	return (n+Seats-2)%Seats + 1
}

// TileCount sums every location a tile can be in. It is tile.Total for a well-formed match.
func (m *Match) TileCount() int {
	n := len(m.stock) + m.Ledger.CommittedCount()
	for _, s := range m.seats {
		n += s.Hand.Count() + len(s.Discards)
	}
	return n
}

// Verify checks the tile conservation invariant.
func (m *Match) Verify() error {
	if n := m.TileCount(); n != tile.Total {
		return fmt.Errorf("match %s holds %d tiles, want %d", m.ID, n, tile.Total)
	}
	return nil
}

// actor resolves player to a seat that may act right now.
func (m *Match) actor(player uuid.UUID) (int, *Seat, error) {
	if m.Status != StatusActive {
		return 0, nil, ErrMatchOver
	}
	n := m.SeatOf(player)
	if n == 0 {
		return 0, nil, ErrUnknownPlayer
	}
	if n != m.Turn.CurrentPlayer {
		return 0, nil, ErrNotYourTurn
	}
	return n, m.seats[n-1], nil
}

// mayDiscard reports whether seat n is in its discard phase.
func (m *Match) mayDiscard(n int) bool {
	return m.Turn.HasDrawn || (m.Turn.TurnCounter == 0 && n == m.First)
}

// Draw takes one tile for player from src. Taking from the left neighbour only succeeds
// while that neighbour's latest discard is unclaimed, so a tile can be claimed once.
func (m *Match) Draw(player uuid.UUID, src Source) (tile.Tile, error) {
	n, seat, err := m.actor(player)
	if err != nil {
		return tile.Tile{}, err
	}
	if !m.Turn.DrawRight {
		return tile.Tile{}, ErrNoDrawRight
	}

	var t tile.Tile
	switch src {
	case SourceStock:
		if len(m.stock) == 0 {
			return tile.Tile{}, ErrStockEmpty
		}
		t = m.stock[len(m.stock)-1]
	case SourceLeftDiscard:
		left := m.seats[LeftOf(n)-1]
		if !m.freshDiscard || len(left.Discards) == 0 {
			return tile.Tile{}, ErrDiscardUnavailable
		}
		t = left.Discards[len(left.Discards)-1]
	default:
		return tile.Tile{}, reject(ErrDiscardUnavailable, "unknown draw source %d", src)
	}

	hand, ok := seat.Hand.Add(t)
	if !ok {
		return tile.Tile{}, reject(ErrInvalidLayout, "rack has no free slot")
	}
	seat.Hand = hand
	if src == SourceStock {
		m.stock = m.stock[:len(m.stock)-1]
	} else {
		left := m.seats[LeftOf(n)-1]
		left.Discards = left.Discards[:len(left.Discards)-1]
		m.freshDiscard = false
	}
	m.Turn.DrawRight = false
	m.Turn.HasDrawn = true
	return t, nil
}

// Discard moves id from player's rack to their discard pile and passes the turn. Discarding
// the last tile on the rack finishes the hand.
func (m *Match) Discard(player uuid.UUID, id uuid.UUID) error {
	n, seat, err := m.actor(player)
	if err != nil {
		return err
	}
	if !m.mayDiscard(n) {
		return ErrMustDrawFirst
	}
	if seat.Hand.Index(id) < 0 {
		return ErrTileNotInHand
	}
	if seat.Hand.Count() == 1 {
		_, err := m.FinishHand(player, id)
		return err
	}

	hand, t, _ := seat.Hand.Remove(id)
	seat.Hand = hand
	seat.Discards = append(seat.Discards, t)
	m.freshDiscard = true

	m.Turn.HasDrawn = false
	m.Turn.DrawRight = true
	m.Turn.CurrentPlayer = m.Turn.CurrentPlayer%Seats + 1
	m.Turn.TurnCounter++
	return nil
}

// validateSpans scores every span against hand and checks they are disjoint.
func (m *Match) validateSpans(hand tile.Hand, spans []Span) ([]LedgerEntry, int, error) {
	if len(spans) == 0 {
		return nil, 0, reject(ErrInvalidCombination, "no combinations given")
	}
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	entries := make([]LedgerEntry, 0, len(sorted))
	total := 0
	for i, sp := range sorted {
		if sp.Start < 0 || sp.End >= len(hand) || sp.End-sp.Start+1 < combo.MinSize {
			return nil, 0, reject(ErrInvalidCombination, "slots %d..%d are not a window of your rack", sp.Start, sp.End)
		}
		if i > 0 && sp.Start <= sorted[i-1].End {
			return nil, 0, ErrCombinationOverlap
		}
		group := hand[sp.Start : sp.End+1]
		kind, score := combo.Classify(group, m.Okey)
		if kind == combo.Invalid {
			return nil, 0, reject(ErrInvalidCombination, "slots %d..%d are not a valid run or set", sp.Start, sp.End)
		}
		tiles := make([]tile.Tile, len(group))
		copy(tiles, group)
		entries = append(entries, LedgerEntry{Kind: kind, Score: score, Tiles: tiles, Turn: m.Turn.TurnCounter})
		total += score
	}
	return entries, total, nil
}

// Commit lays the combinations at spans of player's rack on the table. Every score is
// recomputed; claimedTotal is only reported back for comparison. A player who has not
// opened yet needs at least Rules.OpenThreshold points. Rejections leave the rack unchanged.
func (m *Match) Commit(player uuid.UUID, spans []Span, claimedTotal int) (int, error) {
	n, seat, err := m.actor(player)
	if err != nil {
		return 0, err
	}
	if !m.mayDiscard(n) {
		return 0, ErrMustDrawFirst
	}

	entries, total, err := m.validateSpans(seat.Hand, spans)
	if err != nil {
		return 0, err
	}
	if !m.Ledger.Opened(player) && total < m.Rules.OpenThreshold {
		return 0, reject(ErrBelowThreshold, "combinations score %d, opening needs %d", total, m.Rules.OpenThreshold)
	}
	covered := 0
	slots := make([]int, 0, 2*len(spans))
	for _, sp := range spans {
		for i := sp.Start; i <= sp.End; i++ {
			slots = append(slots, i)
		}
		covered += sp.End - sp.Start + 1
	}
	if seat.Hand.Count()-covered < 1 {
		return 0, ErrMustKeepTile
	}

	seat.Hand = seat.Hand.Clear(slots)
	m.Ledger.Append(player, entries...)
	return total, nil
}

// FinishHand ends the match with player as winner. finalTile goes to their discard pile and
// every remaining tile must be covered by the greedy cover of the rack.
func (m *Match) FinishHand(player uuid.UUID, finalTile uuid.UUID) (*Result, error) {
	n, seat, err := m.actor(player)
	if err != nil {
		return nil, err
	}
	if !m.mayDiscard(n) {
		return nil, ErrMustDrawFirst
	}
	if seat.Hand.Index(finalTile) < 0 {
		return nil, ErrTileNotInHand
	}

	rest, last, _ := seat.Hand.Clone().Remove(finalTile)
	ev := combo.EvaluateHand(rest, m.Okey)
	for i, t := range rest {
		if !t.IsZero() && !ev.Covers(i) {
			return nil, reject(ErrHandNotComplete, "%s in slot %d is not part of a combination", t, i)
		}
	}
	if !m.Ledger.Opened(player) && ev.TotalScore < m.Rules.OpenThreshold {
		return nil, reject(ErrBelowThreshold, "rack scores %d, opening needs %d", ev.TotalScore, m.Rules.OpenThreshold)
	}

	seat.Hand = rest
	seat.Discards = append(seat.Discards, last)
	m.freshDiscard = false
	m.Turn.HasDrawn = false
	m.Turn.DrawRight = false
	return m.end(StatusFinished, player, "finished"), nil
}

// Exhaust ends the match with no winner after the stock ran out. Every player pays.
func (m *Match) Exhaust() (*Result, error) {
	if m.Status != StatusActive {
		return nil, ErrMatchOver
	}
	if len(m.stock) > 0 {
		return nil, fmt.Errorf("exhaust match %s: stock still holds %d tiles", m.ID, len(m.stock))
	}
	return m.end(StatusExhausted, uuid.Nil, "stock exhausted"), nil
}

// Abort ends the match without scoring.
func (m *Match) Abort(reason string) (*Result, error) {
	if m.Status != StatusActive {
		return nil, ErrMatchOver
	}
	m.Status = StatusAborted
	m.Result = &Result{MatchID: m.ID, Status: StatusAborted, Reason: reason, Turns: m.Turn.TurnCounter}
	return m.Result, nil
}

// Penalty is what a non-winning seat pays: the unopened penalty, or the effective value of
// every tile still on the rack.
func (m *Match) Penalty(n int) int {
	s := m.Seat(n)
	if s == nil {
		return 0
	}
	if !m.Ledger.Opened(s.Player) {
		return m.Rules.UnopenedPenalty
	}
	sum := 0
	for _, t := range s.Hand.Tiles() {
		sum += tile.Effective(t, m.Okey).Number
	}
	return sum
}

func (m *Match) end(status Status, winner uuid.UUID, reason string) *Result {
	m.Status = status
	r := &Result{
		MatchID: m.ID,
		Status:  status,
		Winner:  winner,
		Reason:  reason,
		Scores:  make(map[uuid.UUID]int, Seats),
		Turns:   m.Turn.TurnCounter,
	}
	for i, s := range m.seats {
		if s.Player == winner {
			r.Scores[s.Player] = m.Rules.FinishScore
			continue
		}
		r.Scores[s.Player] = m.Penalty(i + 1)
	}
	m.Result = r
	return r
}

// Rearrange reorders player's rack. It is allowed at any time while the match is active.
func (m *Match) Rearrange(player uuid.UUID, layout []uuid.UUID) error {
	if m.Status != StatusActive {
		return ErrMatchOver
	}
	n := m.SeatOf(player)
	if n == 0 {
		return ErrUnknownPlayer
	}
	seat := m.seats[n-1]
	hand, err := seat.Hand.Arrange(layout)
	if err != nil {
		return reject(ErrInvalidLayout, "%v", err)
	}
	seat.Hand = hand
	return nil
}

// IsRejection reports whether err is a game Error rather than an internal failure.
func IsRejection(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
