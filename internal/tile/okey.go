package tile

// Okey is the live joker value of a match, derived once from the indicator.
// The zero Okey is unset.
type Okey Face

// OkeyFromIndicator applies the wrap-around rule: the okey is the next number of the
// indicator's colour, and 13 wraps to 1.
func OkeyFromIndicator(indicator Tile) Okey {
	n := indicator.Number + 1
	if indicator.Number == MaxNumber {
		n = MinNumber
	}
	return Okey{Colour: indicator.Colour, Number: n}
}

// Valid reports whether the okey has been set from an indicator.
func (o Okey) Valid() bool {
	return o.Colour.Valid() && o.Number >= MinNumber && o.Number <= MaxNumber
}

func (o Okey) String() string {
	return Face(o).String()
}

// Effective returns the face t stands for inside a combination: jokers take the okey's
// face, every other tile keeps its own. The tile itself is never modified.
func Effective(t Tile, okey Okey) Face {
	if t.Joker {
		return Face(okey)
	}
	return t.Face()
}
