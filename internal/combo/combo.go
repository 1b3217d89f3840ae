// internal/combo/combo.go
package combo

import (
	"fmt"
	"sort"

	"github.com/okeyhub/okey101/internal/tile"
)

// MinSize is the smallest group that can form a combination.
const MinSize = 3

const (
	maxSetSize = 4
	// jokerFallback is the value of each joker in an all-joker group when no okey is known.
	jokerFallback = 7
)

// Kind tags a combination.
type Kind int

const (
	Invalid Kind = iota
	Run
	Set
)

func (k Kind) String() string {
	switch k {
	case Run:
		return "run"
	case Set:
		return "set"
	default:
		return "invalid"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for _, kind := range []Kind{Invalid, Run, Set} {
		if kind.String() == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown combination kind %q", b)
}

// split separates jokers from the numbered tiles. ok is false when the group holds an empty slot.
func split(tiles []tile.Tile) (plain []tile.Tile, jokers int, ok bool) {
	plain = make([]tile.Tile, 0, len(tiles))
	for _, t := range tiles {
		if t.IsZero() {
			return nil, 0, false
		}
		if t.Joker {
			jokers++
			continue
		}
		plain = append(plain, t)
	}
	return plain, jokers, true
}

// hasDuplicate reports whether two numbered tiles share colour and number.
func hasDuplicate(plain []tile.Tile) bool {
	seen := make(map[tile.Face]struct{}, len(plain))
	for _, t := range plain {
		if _, dup := seen[t.Face()]; dup {
			return true
		}
		seen[t.Face()] = struct{}{}
	}
	return false
}

// runStart returns the first start number of a consecutive window of length size that holds
// every numbered tile, with jokers filling the holes. The window never wraps past 13.
func runStart(plain []tile.Tile, jokers, size int) (int, bool) {
	colour := plain[0].Colour
	nums := make([]int, len(plain))
	for i, t := range plain {
		if t.Colour != colour {
			return 0, false
		}
		nums[i] = t.Number
	}
	sort.Ints(nums)

	lo := max(tile.MinNumber, nums[0]-jokers)
	hi := min(tile.MaxNumber-size+1, nums[len(nums)-1])
	for s := lo; s <= hi; s++ {
		if nums[0] >= s && nums[len(nums)-1] <= s+size-1 {
			return s, true
		}
	}
	return 0, false
}

func setNumber(plain []tile.Tile, size int) (int, bool) {
	if size < MinSize || size > maxSetSize {
		return 0, false
	}
	n := plain[0].Number
	colours := make(map[tile.Colour]struct{}, len(plain))
	for _, t := range plain {
		if t.Number != n {
			return 0, false
		}
		if _, dup := colours[t.Colour]; dup {
			return 0, false
		}
		colours[t.Colour] = struct{}{}
	}
	return n, true
}

// IsRun reports whether tiles form a same-colour consecutive run, jokers filling gaps.
// A group made only of jokers counts as a run.
func IsRun(tiles []tile.Tile) bool {
	plain, jokers, ok := split(tiles)
	if !ok || len(tiles) < MinSize {
		return false
	}
	if len(plain) == 0 {
		return true
	}
	if hasDuplicate(plain) {
		return false
	}
	_, ok = runStart(plain, jokers, len(tiles))
	return ok
}

// IsSet reports whether tiles form a set of 3 or 4 same-number tiles in distinct colours.
func IsSet(tiles []tile.Tile) bool {
	plain, _, ok := split(tiles)
	if !ok || len(plain) == 0 {
		return false
	}
	_, ok = setNumber(plain, len(tiles))
	return ok
}

// IsValid reports whether tiles form any combination.
func IsValid(tiles []tile.Tile) bool {
	k, _ := Classify(tiles, tile.Okey{})
	return k != Invalid
}

// Score returns the points of tiles as a combination, or 0 when it is not one.
func Score(tiles []tile.Tile, okey tile.Okey) int {
	_, s := Classify(tiles, okey)
	return s
}

// Classify validates tiles and scores them. Runs are tried before sets, and a run scores the
// window of the first accepting start, so a group valid both ways is always scored as a run.
func Classify(tiles []tile.Tile, okey tile.Okey) (Kind, int) {
	size := len(tiles)
	if size < MinSize {
		return Invalid, 0
	}
	plain, jokers, ok := split(tiles)
	if !ok {
		return Invalid, 0
	}

	if len(plain) == 0 {
		per := jokerFallback
		if okey.Valid() {
			per = okey.Number
		}
		return Run, per * size
	}
	if hasDuplicate(plain) {
		return Invalid, 0
	}

	if s, ok := runStart(plain, jokers, size); ok {
		// sum of s..s+size-1
		return Run, size*s + size*(size-1)/2
	}
	if n, ok := setNumber(plain, size); ok {
		return Set, n * size
	}
	return Invalid, 0
}
