package tile

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOkeyFromIndicator(t *testing.T) {
	assert.Equal(t, Okey{Colour: Red, Number: 6}, OkeyFromIndicator(Tile{Colour: Red, Number: 5}))
	assert.Equal(t, Okey{Colour: Blue, Number: 1}, OkeyFromIndicator(Tile{Colour: Blue, Number: 13}), "13 wraps to 1")
	assert.False(t, Okey{}.Valid())
}

func TestEffective(t *testing.T) {
	okey := Okey{Colour: Black, Number: 9}
	j := NewJoker()
	assert.Equal(t, Face{Colour: Black, Number: 9}, Effective(j, okey))
	assert.True(t, j.Joker, "joker identity must not change")
	assert.Equal(t, 0, j.Number)

	r := New(Yellow, 4)
	assert.Equal(t, Face{Colour: Yellow, Number: 4}, Effective(r, okey))
}

func TestLessSortsJokersLast(t *testing.T) {
	tiles := []Tile{NewJoker(), New(Blue, 2), New(Red, 2), New(Yellow, 1)}
	sort.SliceStable(tiles, func(i, j int) bool { return Less(tiles[i], tiles[j]) })
	assert.Equal(t, "yellow-1", tiles[0].String())
	assert.Equal(t, "red-2", tiles[1].String())
	assert.Equal(t, "blue-2", tiles[2].String())
	assert.True(t, tiles[3].Joker)
}

func TestColourJSON(t *testing.T) {
	b, err := json.Marshal(Tile{ID: uuid.Nil, Colour: Black, Number: 3})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"colour":"black"`)

	var back Tile
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Black, back.Colour)

	var c Colour
	assert.Error(t, c.UnmarshalText([]byte("green")))
}

func TestHandAddRemove(t *testing.T) {
	a, b, c := New(Red, 1), New(Red, 2), New(Red, 3)
	h := Hand{a, b, c}

	h, removed, ok := h.Remove(b.ID)
	require.True(t, ok)
	assert.Equal(t, b, removed)
	assert.Len(t, h, 3, "inner gap is kept")
	assert.Equal(t, 2, h.Count())

	h, _, ok = h.Remove(c.ID)
	require.True(t, ok)
	assert.Len(t, h, 1, "trailing gaps are trimmed")

	_, _, ok = h.Remove(uuid.New())
	assert.False(t, ok)

	h, ok = h.Add(c)
	require.True(t, ok)
	assert.Equal(t, 1, h.Index(c.ID))
}

func TestHandAddFillsGapAtCapacity(t *testing.T) {
	h := make(Hand, MaxSlots)
	for i := range h {
		h[i] = New(Red, 1)
	}
	h[4] = Tile{}
	j := NewJoker()
	h, ok := h.Add(j)
	require.True(t, ok)
	assert.Equal(t, 4, h.Index(j.ID))

	_, ok = h.Add(NewJoker())
	assert.False(t, ok, "full rack")
}

func TestHandArrange(t *testing.T) {
	a, b, c := New(Red, 1), New(Red, 2), New(Red, 3)
	h := Hand{a, b, c}

	out, err := h.Arrange([]uuid.UUID{c.ID, uuid.Nil, a.ID, b.ID, uuid.Nil})
	require.NoError(t, err)
	assert.Len(t, out, 4)
	assert.True(t, out[1].IsZero())
	assert.Equal(t, c, out[0])

	_, err = h.Arrange([]uuid.UUID{a.ID, b.ID})
	assert.Error(t, err, "missing tile")

	_, err = h.Arrange([]uuid.UUID{a.ID, a.ID, b.ID, c.ID})
	assert.Error(t, err, "duplicate tile")

	_, err = h.Arrange(make([]uuid.UUID, MaxSlots+1))
	assert.Error(t, err)
}
