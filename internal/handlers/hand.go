package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/combo"
	"github.com/okeyhub/okey101/internal/tile"
)

// evaluateRequest is a rack in slot order; null entries are gaps.
type evaluateRequest struct {
	Tiles []*tile.Tile `json:"tiles"`
	Okey  tile.Okey    `json:"okey"`
}

// EvaluateHandHandler returns the greedy cover of a posted rack. It holds no state besides
// the shared evaluation cache.
func EvaluateHandHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req evaluateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad evaluate request payload", http.StatusBadRequest)
			return
		}
		if len(req.Tiles) > tile.MaxSlots {
			http.Error(w, "too many slots", http.StatusBadRequest)
			return
		}

		hand := make(tile.Hand, len(req.Tiles))
		for i, t := range req.Tiles {
			if t == nil {
				continue
			}
			if !t.Joker && (!t.Colour.Valid() || t.Number < tile.MinNumber || t.Number > tile.MaxNumber) {
				http.Error(w, "invalid tile", http.StatusBadRequest)
				return
			}
			hand[i] = *t
			if hand[i].ID == uuid.Nil {
				hand[i].ID = uuid.New()
			}
		}

		var ev combo.Evaluation
		if gs.Evaluator != nil {
			ev = gs.Evaluator.Evaluate(hand, req.Okey)
		} else {
			ev = combo.EvaluateHand(hand, req.Okey)
		}
		writeJSON(w, http.StatusOK, ev)
	}
}
