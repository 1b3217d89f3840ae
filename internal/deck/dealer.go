package deck

import (
	"fmt"
	"sort"

	"github.com/okeyhub/okey101/internal/tile"
)

const (
	// Seats is the number of players in a match.
	Seats = 4
	// HandSize is the number of tiles dealt to every seat; the first player gets one more.
	HandSize = 14
)

// Deal pops starting hands off the end of tiles in seat order. first is the 0-based seat of
// the designated first player. Hands are sorted by number then colour for display only.
// The remaining tiles are returned as the stock, top at the end.
func Deal(tiles []tile.Tile, first int) ([Seats]tile.Hand, []tile.Tile, error) {
	var hands [Seats]tile.Hand
	if first < 0 || first >= Seats {
		return hands, nil, fmt.Errorf("%w: first seat %d out of range", ErrConstruction, first)
	}
	dealt := Seats*HandSize + 1
	if len(tiles) < dealt {
		return hands, nil, fmt.Errorf("%w: %d tiles cannot cover a %d tile deal", ErrConstruction, len(tiles), dealt)
	}

	stock := make([]tile.Tile, len(tiles))
	copy(stock, tiles)

	pop := func() tile.Tile {
		t := stock[len(stock)-1]
		stock = stock[:len(stock)-1]
		return t
	}

	for seat := 0; seat < Seats; seat++ {
		n := HandSize
		if seat == first {
			n++
		}
		h := make(tile.Hand, 0, n+1)
		for i := 0; i < n; i++ {
			h = append(h, pop())
		}
		sort.SliceStable(h, func(i, j int) bool { return tile.Less(h[i], h[j]) })
		hands[seat] = h
	}

	if len(stock) != len(tiles)-dealt {
		return hands, nil, fmt.Errorf("%w: stock has %d tiles after dealing %d of %d", ErrConstruction, len(stock), dealt, len(tiles))
	}
	return hands, stock, nil
}
