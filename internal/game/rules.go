// internal/game/rules.go
package game

import "fmt"

// HouseRules holds the scoring constants and lifecycle policies of a match.
type HouseRules struct {
	OpenThreshold       int  `json:"openThreshold"`       // points needed for a player's first commit
	UnopenedPenalty     int  `json:"unopenedPenalty"`     // paid by a player who never opened
	FinishScore         int  `json:"finishScore"`         // recorded for the player who finishes
	AbortOnDisconnect   bool `json:"abortOnDisconnect"`   // abort the match when a seated player disconnects
	EndOnStockExhausted bool `json:"endOnStockExhausted"` // end the match when a draw hits the empty stock
}

// DefaultHouseRules returns the standard 101 rules.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		OpenThreshold:       101,
		UnopenedPenalty:     202,
		FinishScore:         -101,
		AbortOnDisconnect:   true,
		EndOnStockExhausted: true,
	}
}

// Update will update the house rules with the new rules provided.
// If a rule is not set or defined, it will be ignored, and the old value will persist.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal {
			return fmt.Errorf("%s must be at least %d", key, minVal)
		}
		*field = n
		return nil
	}

	if err := assignInt(&rules.OpenThreshold, "openThreshold", 1); err != nil {
		return err
	}
	if err := assignInt(&rules.UnopenedPenalty, "unopenedPenalty", 0); err != nil {
		return err
	}
	if err := assignInt(&rules.FinishScore, "finishScore", -1000); err != nil {
		return err
	}
	if err := assignBool(&rules.AbortOnDisconnect, "abortOnDisconnect"); err != nil {
		return err
	}
	if err := assignBool(&rules.EndOnStockExhausted, "endOnStockExhausted"); err != nil {
		return err
	}
	return nil
}

// ParseRules applies rules on top of current. current is left untouched.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}
