package tile

import (
	"fmt"

	"github.com/google/uuid"
)

// MaxSlots is the rack capacity: 28 display slots plus one for the just-drawn tile.
const MaxSlots = 29

// Hand is a player's rack. Slot order is chosen by the player; a zero Tile is an empty slot.
type Hand []Tile

// Count returns the number of tiles on the rack, ignoring empty slots.
func (h Hand) Count() int {
	n := 0
	for _, t := range h {
		if !t.IsZero() {
			n++
		}
	}
	return n
}

// Tiles returns the occupied slots in rack order.
func (h Hand) Tiles() []Tile {
	out := make([]Tile, 0, len(h))
	for _, t := range h {
		if !t.IsZero() {
			out = append(out, t)
		}
	}
	return out
}

// Index returns the slot holding tile id, or -1.
func (h Hand) Index(id uuid.UUID) int {
	if id == uuid.Nil {
		return -1
	}
	for i, t := range h {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy of the rack.
func (h Hand) Clone() Hand {
	out := make(Hand, len(h))
	copy(out, h)
	return out
}

// Add places t in a new trailing slot, or in the first gap once the rack is at capacity.
func (h Hand) Add(t Tile) (Hand, bool) {
	if len(h) < MaxSlots {
		return append(h, t), true
	}
	for i := range h {
		if h[i].IsZero() {
			h[i] = t
			return h, true
		}
	}
	return h, false
}

// Remove empties the slot holding id. Trailing gaps are trimmed.
func (h Hand) Remove(id uuid.UUID) (Hand, Tile, bool) {
	i := h.Index(id)
	if i < 0 {
		return h, Tile{}, false
	}
	t := h[i]
	h[i] = Tile{}
	return h.trim(), t, true
}

// Clear empties the given slots. Trailing gaps are trimmed.
func (h Hand) Clear(slots []int) Hand {
	for _, i := range slots {
		if i >= 0 && i < len(h) {
			h[i] = Tile{}
		}
	}
	return h.trim()
}

func (h Hand) trim() Hand {
	end := len(h)
	for end > 0 && h[end-1].IsZero() {
		end--
	}
	return h[:end]
}

// Arrange returns the rack laid out as given. Every tile in h must appear exactly once
// and uuid.Nil entries become gaps.
func (h Hand) Arrange(layout []uuid.UUID) (Hand, error) {
	if len(layout) > MaxSlots {
		return nil, fmt.Errorf("layout has %d slots, rack holds %d", len(layout), MaxSlots)
	}
	byID := make(map[uuid.UUID]Tile, len(h))
	for _, t := range h {
		if !t.IsZero() {
			byID[t.ID] = t
		}
	}
	out := make(Hand, len(layout))
	for i, id := range layout {
		if id == uuid.Nil {
			continue
		}
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("tile %s is not on the rack or is listed twice", id)
		}
		delete(byID, id)
		out[i] = t
	}
	if len(byID) != 0 {
		return nil, fmt.Errorf("layout is missing %d tile(s)", len(byID))
	}
	return out.trim(), nil
}
