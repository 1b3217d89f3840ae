// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/auth"
	"github.com/okeyhub/okey101/internal/lobby"
)

type joinRequest struct {
	Name string `json:"name"`
}

type joinResponse struct {
	Token   string    `json:"token"`
	UserID  uuid.UUID `json:"userId"`
	Name    string    `json:"name"`
	Seat    int       `json:"seat"`
	LobbyID uuid.UUID `json:"lobbyId"`
	RoomID  uuid.UUID `json:"roomId,omitempty"`
}

// JoinLobbyHandler seats a player in the open lobby and returns their seat ticket. The join
// that fills the lobby opens its room.
func JoinLobbyHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad join request payload", http.StatusBadRequest)
			return
		}

		l, seat, full, err := gs.Lobbies.Join(req.Name, gs.Rules)
		if errors.Is(err, lobby.ErrEmptyName) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		token, err := gs.Issuer.CreateJWT(auth.Ticket{UserID: seat.UserID, LobbyID: l.ID})
		if err != nil {
			gs.Logger.Errorf("failed to sign ticket: %v", err)
			http.Error(w, "failed to create ticket", http.StatusInternalServerError)
			return
		}
		resp := joinResponse{
			Token:   token,
			UserID:  seat.UserID,
			Name:    seat.Name,
			Seat:    seat.Number,
			LobbyID: l.ID,
		}

		if full {
			room, err := gs.NewRoomFromLobby(l)
			if err != nil {
				gs.Logger.Errorf("failed to open room for lobby %s: %v", l.ID, err)
				gs.Lobbies.DeleteLobby(l.ID)
				http.Error(w, "failed to start match", http.StatusInternalServerError)
				return
			}
			resp.RoomID = room.ID
		}

		http.SetCookie(w, &http.Cookie{
			Name:     tokenCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, resp)
	}
}

// GetLobbyHandler reports a lobby's seats and, once the match started, its room id.
func GetLobbyHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid lobby id", http.StatusBadRequest)
			return
		}
		l, ok := gs.Lobbies.GetLobby(id)
		if !ok {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, l.Status())
	}
}

// LeaveLobbyHandler frees the ticket holder's seat while the lobby is still waiting.
func LeaveLobbyHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticket, err := ticketFromRequest(gs.Issuer, r)
		if err != nil {
			http.Error(w, "invalid ticket", http.StatusUnauthorized)
			return
		}
		l, ok := gs.Lobbies.GetLobby(ticket.LobbyID)
		if !ok {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		if err := l.Leave(ticket.UserID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, l.Status())
	}
}

// ListLobbiesHandler returns every lobby in memory keyed by id.
func ListLobbiesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbies := gs.Lobbies.GetLobbies()
		out := make(map[uuid.UUID]lobby.Status, len(lobbies))
		for id, l := range lobbies {
			out[id] = l.Status()
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// UpdateLobbyRulesHandler lets a seated player change the house rules of /lobby/{id} while
// it is still waiting for players. Unknown keys are ignored.
func UpdateLobbyRulesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid lobby id", http.StatusBadRequest)
			return
		}
		ticket, err := ticketFromRequest(gs.Issuer, r)
		if err != nil {
			http.Error(w, "invalid ticket", http.StatusUnauthorized)
			return
		}
		l, ok := gs.Lobbies.GetLobby(id)
		if !ok {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		if ticket.LobbyID != id || !l.HasUser(ticket.UserID) {
			http.Error(w, "not seated in this lobby", http.StatusForbidden)
			return
		}

		var rules map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
			http.Error(w, "bad rules payload", http.StatusBadRequest)
			return
		}
		if err := l.Update(rules); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, lobby.ErrInGame) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, l.Status())
	}
}
