package game

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/deck"
	"github.com/okeyhub/okey101/internal/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOkey is the okey of every rigged match: jokers stand for blue 13.
var testOkey = tile.Okey{Colour: tile.Blue, Number: 13}

var colourCodes = map[byte]tile.Colour{'R': tile.Red, 'Y': tile.Yellow, 'K': tile.Black, 'B': tile.Blue}

// tilePool hands out the 108 physical tiles of a match by face code: "R5", "K13", "J" for a
// joker and "" for an empty slot.
type tilePool struct {
	tiles []tile.Tile
}

func newTilePool() *tilePool {
	p := &tilePool{}
	for _, c := range tile.Colours {
		for n := tile.MinNumber; n <= tile.MaxNumber; n++ {
			for k := 0; k < tile.Copies; k++ {
				p.tiles = append(p.tiles, tile.New(c, n))
			}
		}
	}
	for k := 0; k < tile.Jokers; k++ {
		p.tiles = append(p.tiles, tile.NewJoker())
	}
	return p
}

func (p *tilePool) take(t *testing.T, code string) tile.Tile {
	t.Helper()
	if code == "" {
		return tile.Tile{}
	}
	match := func(x tile.Tile) bool {
		if code == "J" {
			return x.Joker
		}
		var n int
		for _, ch := range code[1:] {
			n = n*10 + int(ch-'0')
		}
		return !x.Joker && x.Colour == colourCodes[code[0]] && x.Number == n
	}
	for i, x := range p.tiles {
		if match(x) {
			p.tiles = append(p.tiles[:i], p.tiles[i+1:]...)
			return x
		}
	}
	t.Fatalf("no tile %q left in the pool", code)
	return tile.Tile{}
}

func (p *tilePool) rack(t *testing.T, codes ...string) tile.Hand {
	t.Helper()
	h := make(tile.Hand, len(codes))
	for i, c := range codes {
		h[i] = p.take(t, c)
	}
	return h
}

func newPlayerIDs() [Seats]uuid.UUID {
	return [Seats]uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
}

// riggedMatch builds an active match with the given racks. Seat 1 plays first and is in its
// opening discard phase; every other tile is in the stock.
func riggedMatch(t *testing.T, players [Seats]uuid.UUID, rules HouseRules, racks [Seats][]string) *Match {
	t.Helper()
	pool := newTilePool()
	m := &Match{
		ID:        uuid.New(),
		Rules:     rules,
		Okey:      testOkey,
		Indicator: tile.New(tile.Blue, 12),
		Turn:      TurnState{CurrentPlayer: 1},
		First:     1,
		Status:    StatusActive,
		Ledger:    NewLedger(),
	}
	for i := range m.seats {
		m.seats[i] = &Seat{Player: players[i], Hand: pool.rack(t, racks[i]...)}
	}
	m.stock = pool.tiles
	require.NoError(t, m.Verify())
	return m
}

func seededShuffler(seed int64) deck.Shuffler {
	return rand.New(rand.NewSource(seed))
}

func startTestMatch(t *testing.T, first int) (*Match, [Seats]uuid.UUID) {
	t.Helper()
	players := newPlayerIDs()
	m, err := StartMatch(players, first, seededShuffler(42), DefaultHouseRules())
	require.NoError(t, err)
	return m, players
}

// anyTile returns some tile on player's rack.
func anyTile(t *testing.T, m *Match, player uuid.UUID) tile.Tile {
	t.Helper()
	hand, ok := m.Hand(player)
	require.True(t, ok)
	tiles := hand.Tiles()
	require.NotEmpty(t, tiles)
	return tiles[0]
}

func TestStartMatchDeal(t *testing.T) {
	m, players := startTestMatch(t, 3)

	require.NoError(t, m.Verify())
	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, TurnState{CurrentPlayer: 3}, m.Turn)
	assert.Equal(t, tile.OkeyFromIndicator(m.Indicator), m.Okey)
	assert.False(t, m.Indicator.Joker)
	assert.Equal(t, tile.Total-deck.Seats*deck.HandSize-1, m.StockSize())

	for n := 1; n <= Seats; n++ {
		want := deck.HandSize
		if n == 3 {
			want++
		}
		assert.Equal(t, want, m.Seat(n).Hand.Count(), "seat %d", n)
	}

	o := m.Opening()
	assert.Equal(t, players[2], o.First)
	assert.Equal(t, m.StockSize(), o.StockSize)
	assert.Len(t, o.Hands, Seats)
	assert.Equal(t, players, m.Players())
}

func TestStartMatchRejectsBadInput(t *testing.T) {
	players := newPlayerIDs()
	_, err := StartMatch(players, 0, nil, DefaultHouseRules())
	assert.ErrorIs(t, err, ErrDeckConstruction)
	assert.Equal(t, KindConstructionInvariantFailure, KindOf(err))

	players[1] = players[0]
	_, err = StartMatch(players, 1, nil, DefaultHouseRules())
	assert.ErrorIs(t, err, ErrDeckConstruction)
}

func TestTurnRotation(t *testing.T) {
	m, players := startTestMatch(t, 1)

	// the first player opens by discarding
	require.NoError(t, m.Discard(players[0], anyTile(t, m, players[0]).ID))
	require.NoError(t, m.Verify())

	for n := 2; n <= Seats; n++ {
		p := players[n-1]
		assert.Equal(t, n, m.Turn.CurrentPlayer)
		assert.True(t, m.Turn.DrawRight)

		drawn, err := m.Draw(p, SourceStock)
		require.NoError(t, err)
		require.NoError(t, m.Verify())
		assert.False(t, m.Turn.DrawRight)
		hand, _ := m.Hand(p)
		assert.GreaterOrEqual(t, hand.Index(drawn.ID), 0)

		require.NoError(t, m.Discard(p, drawn.ID))
		require.NoError(t, m.Verify())
	}

	assert.Equal(t, 1, m.Turn.CurrentPlayer)
	assert.Equal(t, 4, m.Turn.TurnCounter)
	assert.True(t, m.Turn.DrawRight)

	// the first seat draws like everyone else from now on
	err := m.Discard(players[0], anyTile(t, m, players[0]).ID)
	assert.ErrorIs(t, err, ErrMustDrawFirst)
}

func TestActionPreconditions(t *testing.T) {
	m, players := startTestMatch(t, 1)

	_, err := m.Draw(players[0], SourceStock)
	assert.ErrorIs(t, err, ErrNoDrawRight)

	_, err = m.Draw(players[1], SourceStock)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = m.Draw(uuid.New(), SourceStock)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	err = m.Discard(players[0], uuid.New())
	assert.ErrorIs(t, err, ErrTileNotInHand)

	require.NoError(t, m.Discard(players[0], anyTile(t, m, players[0]).ID))

	err = m.Discard(players[1], anyTile(t, m, players[1]).ID)
	assert.ErrorIs(t, err, ErrMustDrawFirst)
	assert.Equal(t, KindPreconditionViolation, KindOf(err))

	_, err = m.Draw(players[1], Source(9))
	assert.ErrorIs(t, err, ErrDiscardUnavailable)

	_, err = m.Draw(players[1], SourceStock)
	require.NoError(t, err)
	_, err = m.Draw(players[1], SourceStock)
	assert.ErrorIs(t, err, ErrNoDrawRight)
	require.NoError(t, m.Verify())
}

func TestLeftDiscardIsClaimedOnce(t *testing.T) {
	m, players := startTestMatch(t, 1)

	thrown := anyTile(t, m, players[0])
	require.NoError(t, m.Discard(players[0], thrown.ID))
	assert.Equal(t, 1, LeftOf(2))

	got, err := m.Draw(players[1], SourceLeftDiscard)
	require.NoError(t, err)
	assert.Equal(t, thrown, got)
	assert.Empty(t, m.Seat(1).Discards)
	require.NoError(t, m.Verify())

	// the pile is spent and the draw right is used
	_, err = m.Draw(players[1], SourceLeftDiscard)
	assert.ErrorIs(t, err, ErrNoDrawRight)
	m.Turn.DrawRight = true
	_, err = m.Draw(players[1], SourceLeftDiscard)
	assert.ErrorIs(t, err, ErrDiscardUnavailable)
}

func TestLeftDiscardOnlyWhileFresh(t *testing.T) {
	m, players := startTestMatch(t, 1)
	require.NoError(t, m.Discard(players[0], anyTile(t, m, players[0]).ID))

	m.freshDiscard = false
	_, err := m.Draw(players[1], SourceLeftDiscard)
	assert.ErrorIs(t, err, ErrDiscardUnavailable)
	assert.Len(t, m.Seat(1).Discards, 1)
}

func TestStockEmptyLeavesStateUnchanged(t *testing.T) {
	m, players := startTestMatch(t, 1)
	require.NoError(t, m.Discard(players[0], anyTile(t, m, players[0]).ID))

	// park the stock on seat 3's pile so the tile count still holds
	m.Seat(3).Discards = append(m.Seat(3).Discards, m.stock...)
	m.stock = nil
	require.NoError(t, m.Verify())

	turn := m.Turn
	hand, _ := m.Hand(players[1])

	_, err := m.Draw(players[1], SourceStock)
	assert.ErrorIs(t, err, ErrStockEmpty)
	assert.Equal(t, KindStockExhausted, KindOf(err))
	assert.Equal(t, turn, m.Turn)
	after, _ := m.Hand(players[1])
	assert.Equal(t, hand, after)
	assert.Equal(t, StatusActive, m.Status)

	res, err := m.Exhaust()
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, uuid.Nil, res.Winner)
	for _, p := range players {
		assert.Equal(t, 202, res.Scores[p])
	}

	_, err = m.Draw(players[1], SourceStock)
	assert.ErrorIs(t, err, ErrMatchOver)
}

func TestExhaustNeedsEmptyStock(t *testing.T) {
	m, _ := startTestMatch(t, 1)
	_, err := m.Exhaust()
	require.Error(t, err)
	assert.False(t, IsRejection(err))
	assert.Equal(t, StatusActive, m.Status)
}

// openingRack scores 90 across three runs.
var openingRack = []string{"R10", "R11", "R12", "Y10", "Y11", "Y12", "K7", "K8", "K9", "B1", "B3", "B5", "Y1", "Y3", "K1"}

func TestCommitBelowThresholdLeavesRack(t *testing.T) {
	players := newPlayerIDs()
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{openingRack})
	before, _ := m.Hand(players[0])

	_, err := m.Commit(players[0], []Span{{0, 2}, {3, 5}, {6, 8}}, 101)
	assert.ErrorIs(t, err, ErrBelowThreshold)
	assert.Equal(t, KindInvalidCombination, KindOf(err))

	after, _ := m.Hand(players[0])
	assert.Equal(t, before, after)
	assert.False(t, m.Ledger.Opened(players[0]))
	require.NoError(t, m.Verify())
}

func TestCommitOpensThenAddsFreely(t *testing.T) {
	players := newPlayerIDs()
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{{
		"R11", "R12", "R13", "Y11", "Y12", "Y13", "K11", "K12", "K13",
		"B1", "B2", "B3", "Y1", "Y3", "K5",
	}})

	total, err := m.Commit(players[0], []Span{{6, 8}, {0, 2}, {3, 5}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 108, total)
	assert.True(t, m.Ledger.Opened(players[0]))
	assert.Equal(t, 108, m.Ledger.Total(players[0]))
	require.NoError(t, m.Verify())

	hand, _ := m.Hand(players[0])
	assert.Equal(t, 6, hand.Count())
	assert.True(t, hand[0].IsZero())
	assert.Equal(t, 9, hand.Index(hand[9].ID))

	// no threshold once opened
	total, err = m.Commit(players[0], []Span{{9, 11}}, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, m.Ledger.Entries(players[0]), 4)
	require.NoError(t, m.Verify())
}

func TestCommitRejections(t *testing.T) {
	players := newPlayerIDs()
	rack := []string{"R11", "R12", "R13", "Y11", "Y12", "Y13", "K11", "K12", "K13", "B11", "B12", "B13"}
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{rack})

	_, err := m.Commit(players[0], []Span{{0, 3}, {3, 5}}, 0)
	assert.ErrorIs(t, err, ErrInvalidCombination)

	_, err = m.Commit(players[0], []Span{{0, 2}, {2, 4}}, 0)
	assert.ErrorIs(t, err, ErrCombinationOverlap)

	_, err = m.Commit(players[0], []Span{{0, 1}}, 0)
	assert.ErrorIs(t, err, ErrInvalidCombination)

	_, err = m.Commit(players[0], []Span{{10, 12}}, 0)
	assert.ErrorIs(t, err, ErrInvalidCombination)

	_, err = m.Commit(players[0], nil, 0)
	assert.ErrorIs(t, err, ErrInvalidCombination)

	_, err = m.Commit(players[0], []Span{{0, 2}, {3, 5}, {6, 8}, {9, 11}}, 0)
	assert.ErrorIs(t, err, ErrMustKeepTile)

	_, err = m.Commit(players[1], []Span{{0, 2}}, 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	hand, _ := m.Hand(players[0])
	assert.Equal(t, 12, hand.Count())
	assert.Empty(t, m.Ledger.Entries(players[0]))
	require.NoError(t, m.Verify())
}

func TestFinishHandScores(t *testing.T) {
	players := newPlayerIDs()
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{
		{"R11", "R12", "R13", "Y11", "Y12", "Y13", "K11", "K12", "K13", "B9", "B10", "B11", "K1"},
		{"R1", "R2"},
	})
	last := m.Seat(1).Hand[12]

	res, err := m.FinishHand(players[0], last.ID)
	require.NoError(t, err)
	require.NoError(t, m.Verify())

	assert.Equal(t, StatusFinished, res.Status)
	assert.Equal(t, players[0], res.Winner)
	assert.Equal(t, -101, res.Scores[players[0]])
	for _, p := range players[1:] {
		assert.Equal(t, 202, res.Scores[p])
	}
	assert.Equal(t, last, m.Seat(1).Discards[0])
	assert.Same(t, res, m.Result)

	_, err = m.FinishHand(players[0], m.Seat(1).Hand[0].ID)
	assert.ErrorIs(t, err, ErrMatchOver)
}

func TestFinishHandNeedsFullCover(t *testing.T) {
	players := newPlayerIDs()
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{
		{"R11", "R12", "R13", "Y11", "Y12", "Y13", "K11", "K12", "K13", "B9", "B10", "B11", "K1"},
	})
	before, _ := m.Hand(players[0])

	_, err := m.FinishHand(players[0], before[0].ID)
	assert.ErrorIs(t, err, ErrHandNotComplete)

	after, _ := m.Hand(players[0])
	assert.Equal(t, before, after)
	assert.Equal(t, StatusActive, m.Status)
}

func TestFinishHandUnopenedNeedsThreshold(t *testing.T) {
	players := newPlayerIDs()
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{
		{"R1", "R2", "R3", "Y1", "Y2", "Y3", "K5"},
	})
	_, err := m.FinishHand(players[0], m.Seat(1).Hand[6].ID)
	assert.ErrorIs(t, err, ErrBelowThreshold)
}

func TestDiscardingLastTileFinishes(t *testing.T) {
	players := newPlayerIDs()
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{
		{"R11", "R12", "R13", "Y11", "Y12", "Y13", "K11", "K12", "K13", "K1"},
		{"R1", "R2", "R3"},
	})
	_, err := m.Commit(players[0], []Span{{0, 2}, {3, 5}, {6, 8}}, 108)
	require.NoError(t, err)

	require.NoError(t, m.Discard(players[0], m.Seat(1).Hand[9].ID))
	require.NoError(t, m.Verify())
	require.NotNil(t, m.Result)
	assert.Equal(t, StatusFinished, m.Status)
	assert.Equal(t, players[0], m.Result.Winner)
	assert.Equal(t, 0, m.Seat(1).Hand.Count())
}

func TestPenaltyOfOpenedPlayer(t *testing.T) {
	players := newPlayerIDs()
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{
		{"R11", "R12", "R13", "Y11", "Y12", "Y13", "K11", "K12", "K13", "J", "B2"},
	})
	_, err := m.Commit(players[0], []Span{{0, 2}, {3, 5}, {6, 8}}, 108)
	require.NoError(t, err)

	// the joker pays as the okey
	assert.Equal(t, 13+2, m.Penalty(1))
	assert.Equal(t, 202, m.Penalty(2))
	assert.Zero(t, m.Penalty(5))
}

func TestRearrange(t *testing.T) {
	players := newPlayerIDs()
	m := riggedMatch(t, players, DefaultHouseRules(), [Seats][]string{nil, {"R1", "K7", "J"}})
	h := m.Seat(2).Hand

	// out of turn is fine
	layout := []uuid.UUID{h[2].ID, uuid.Nil, h[0].ID, h[1].ID}
	require.NoError(t, m.Rearrange(players[1], layout))
	got := m.Seat(2).Hand
	assert.Equal(t, h[2].ID, got[0].ID)
	assert.True(t, got[1].IsZero())
	assert.Equal(t, h[1].ID, got[3].ID)

	err := m.Rearrange(players[1], []uuid.UUID{got[0].ID})
	assert.ErrorIs(t, err, ErrInvalidLayout)
	err = m.Rearrange(players[1], []uuid.UUID{got[0].ID, got[0].ID, got[2].ID, got[3].ID})
	assert.ErrorIs(t, err, ErrInvalidLayout)
	err = m.Rearrange(uuid.New(), nil)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
	require.NoError(t, m.Verify())
}

func TestAbort(t *testing.T) {
	m, players := startTestMatch(t, 1)
	res, err := m.Abort("player left")
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, "player left", res.Reason)
	assert.Empty(t, res.Scores)

	_, err = m.Abort("again")
	assert.ErrorIs(t, err, ErrMatchOver)
	assert.ErrorIs(t, m.Discard(players[0], anyTile(t, m, players[0]).ID), ErrMatchOver)
}

func TestSourceText(t *testing.T) {
	for in, want := range map[string]Source{
		"stock":        SourceStock,
		"stockpile":    SourceStock,
		"left_discard": SourceLeftDiscard,
		"discard":      SourceLeftDiscard,
	} {
		var s Source
		require.NoError(t, s.UnmarshalText([]byte(in)), in)
		assert.Equal(t, want, s)
	}
	var s Source
	assert.Error(t, s.UnmarshalText([]byte("floor")))
}

func TestStatusText(t *testing.T) {
	for _, st := range []Status{StatusActive, StatusFinished, StatusExhausted, StatusAborted} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var got Status
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, st, got)
	}
}
