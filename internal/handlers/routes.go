package handlers

import (
	"net/http"

	"github.com/okeyhub/okey101/internal/middleware"
)

// Routes mounts every endpoint behind the logging middleware.
func Routes(gs *GameServer) http.Handler {
	mux := http.NewServeMux()

	// lobby endpoints
	mux.Handle("POST /lobby/join", JoinLobbyHandler(gs))
	mux.Handle("POST /lobby/leave", LeaveLobbyHandler(gs))
	mux.Handle("GET /lobby", ListLobbiesHandler(gs))
	mux.Handle("GET /lobby/{id}", GetLobbyHandler(gs))
	mux.Handle("POST /lobby/{id}/rules", UpdateLobbyRulesHandler(gs))

	// stateless rack evaluation
	mux.Handle("POST /hand/evaluate", EvaluateHandHandler(gs))

	// room websocket
	mux.Handle("GET /ws/{roomID}", RoomWSHandler(gs.Logger, gs))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"rooms": gs.Rooms.Len()})
	})

	return middleware.LogMiddleware(gs.Logger)(mux)
}
