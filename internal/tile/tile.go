// internal/tile/tile.go
package tile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Colour is one of the four tile colours. The zero value is not a colour; jokers carry it.
type Colour int

const (
	Red Colour = iota + 1
	Yellow
	Black
	Blue
)

// Colours lists every colour in index order. Index order breaks ties when sorting hands.
var Colours = []Colour{Red, Yellow, Black, Blue}

const (
	MinNumber = 1
	MaxNumber = 13

	// Copies is the number of physical tiles printed for every (colour, number) pair.
	Copies = 2
	// Jokers is the number of joker tiles in a match.
	Jokers = 2
	// Total is the number of physical tiles in a match.
	Total = 4*MaxNumber*Copies + Jokers
)

func (c Colour) String() string {
	switch c {
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	case Black:
		return "black"
	case Blue:
		return "blue"
	}
	return ""
}

// Valid reports whether c is one of the four colours.
func (c Colour) Valid() bool {
	return c >= Red && c <= Blue
}

func (c Colour) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Colour) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	if s == "" {
		*c = 0
		return nil
	}
	for _, col := range Colours {
		if col.String() == s {
			*c = col
			return nil
		}
	}
	return fmt.Errorf("unknown colour %q", string(b))
}

// Face is a (colour, number) pair with no physical identity.
type Face struct {
	Colour Colour `json:"colour"`
	Number int    `json:"number"`
}

func (f Face) String() string {
	return fmt.Sprintf("%s-%d", f.Colour, f.Number)
}

// Tile is one physical tile. A non-joker's face never changes once created.
// The zero Tile marks an empty hand slot.
type Tile struct {
	ID     uuid.UUID `json:"id"`
	Colour Colour    `json:"colour,omitempty"`
	Number int       `json:"number,omitempty"`
	Joker  bool      `json:"joker,omitempty"`
}

// New returns a fresh physical tile with the given face.
func New(c Colour, n int) Tile {
	return Tile{ID: uuid.New(), Colour: c, Number: n}
}

// NewJoker returns a fresh joker tile.
func NewJoker() Tile {
	return Tile{ID: uuid.New(), Joker: true}
}

// IsZero reports whether t is the empty-slot marker.
func (t Tile) IsZero() bool {
	return t == Tile{}
}

// Face returns the printed face of a non-joker tile.
func (t Tile) Face() Face {
	return Face{Colour: t.Colour, Number: t.Number}
}

// Valid reports whether t is a joker or carries a printable face.
func (t Tile) Valid() bool {
	if t.Joker {
		return true
	}
	return t.Colour.Valid() && t.Number >= MinNumber && t.Number <= MaxNumber
}

func (t Tile) String() string {
	if t.IsZero() {
		return "empty"
	}
	if t.Joker {
		return "joker"
	}
	return t.Face().String()
}

// Less orders tiles by number, then colour index. Jokers sort after every numbered tile.
func Less(a, b Tile) bool {
	if a.Joker != b.Joker {
		return b.Joker
	}
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	return a.Colour < b.Colour
}
