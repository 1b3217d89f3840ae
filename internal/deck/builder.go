// internal/deck/builder.go
package deck

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/tile"
	"github.com/valyala/fastrand"
)

// ErrConstruction marks a deck that does not hold exactly the 108 expected tiles.
// Match setup must abort when it is returned.
var ErrConstruction = errors.New("deck construction invariant failed")

// Shuffler produces a uniform random permutation through swap calls, like rand.Shuffle.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// FastShuffler is the default Shuffler. It is not cryptographically strong.
type FastShuffler struct{}

// Shuffle runs a Fisher-Yates pass driven by fastrand.
func (FastShuffler) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := int(fastrand.Uint32n(uint32(i + 1)))
		swap(i, j)
	}
}

// Deck is the output of Build: the okey, the indicator it was derived from, and the full
// shuffled tile set. The indicator is a copy; its physical tile stays in Tiles.
type Deck struct {
	Okey      tile.Okey
	Indicator tile.Tile
	Tiles     []tile.Tile
}

// Build creates the 108 tiles of a match. The 104 numbered tiles are shuffled first and the
// indicator is taken from the top, so a joker can never be the indicator. The jokers are then
// added and the full set is shuffled again.
func Build(s Shuffler) (*Deck, error) {
	if s == nil {
		s = FastShuffler{}
	}

	tiles := make([]tile.Tile, 0, tile.Total)
	for _, c := range tile.Colours {
		for n := tile.MinNumber; n <= tile.MaxNumber; n++ {
			for k := 0; k < tile.Copies; k++ {
				tiles = append(tiles, tile.New(c, n))
			}
		}
	}
	shuffle(s, tiles)

	if len(tiles) == 0 {
		return nil, fmt.Errorf("%w: no numbered tiles", ErrConstruction)
	}
	indicator := tiles[0]

	for k := 0; k < tile.Jokers; k++ {
		tiles = append(tiles, tile.NewJoker())
	}
	shuffle(s, tiles)

	if err := Verify(tiles); err != nil {
		return nil, err
	}

	return &Deck{
		Okey:      tile.OkeyFromIndicator(indicator),
		Indicator: indicator,
		Tiles:     tiles,
	}, nil
}

func shuffle(s Shuffler, tiles []tile.Tile) {
	s.Shuffle(len(tiles), func(i, j int) {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	})
}

// Verify checks that tiles is a complete match set: two copies of every face, two jokers,
// and no physical tile listed twice.
func Verify(tiles []tile.Tile) error {
	if len(tiles) != tile.Total {
		return fmt.Errorf("%w: have %d tiles, want %d", ErrConstruction, len(tiles), tile.Total)
	}
	faces := make(map[tile.Face]int, tile.Total/tile.Copies)
	ids := make(map[uuid.UUID]struct{}, len(tiles))
	jokers := 0
	for _, t := range tiles {
		if !t.Valid() {
			return fmt.Errorf("%w: invalid tile %v", ErrConstruction, t)
		}
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("%w: tile %s listed twice", ErrConstruction, t.ID)
		}
		ids[t.ID] = struct{}{}
		if t.Joker {
			jokers++
			continue
		}
		faces[t.Face()]++
	}
	if jokers != tile.Jokers {
		return fmt.Errorf("%w: have %d jokers, want %d", ErrConstruction, jokers, tile.Jokers)
	}
	for f, n := range faces {
		if n != tile.Copies {
			return fmt.Errorf("%w: face %s has %d copies", ErrConstruction, f, n)
		}
	}
	return nil
}
