// internal/lobby/lobby_store.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/game"
)

// LobbyStore manages waiting and in-game lobbies in memory.
type LobbyStore struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
	// open is the lobby new players are seated in.
	open *Lobby
}

// NewLobbyStore initializes and returns an empty LobbyStore.
func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[uuid.UUID]*Lobby),
	}
}

// DeleteLobby removes a lobby instance from the store by its ID.
func (s *LobbyStore) DeleteLobby(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
	if s.open != nil && s.open.ID == id {
		s.open = nil
	}
}

// GetLobby retrieves a lobby instance from the store by its ID.
func (s *LobbyStore) GetLobby(id uuid.UUID) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// GetLobbies returns a copy of the map containing all lobbies.
func (s *LobbyStore) GetLobbies() map[uuid.UUID]*Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobbiesCopy := make(map[uuid.UUID]*Lobby, len(s.lobbies))
	for k, v := range s.lobbies {
		lobbiesCopy[k] = v
	}
	return lobbiesCopy
}

// Join seats name in the open lobby, opening a new one when needed. The returned lobby is
// full when full is true; it is no longer offered to later joiners.
func (s *LobbyStore) Join(name string, rules game.HouseRules) (*Lobby, Seat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		s.open = NewLobbyWithDefaults(rules)
		s.lobbies[s.open.ID] = s.open
	}
	l := s.open
	seat, full, err := l.Join(name)
	if err != nil {
		return nil, Seat{}, false, err
	}
	if full {
		s.open = nil
	}
	return l, seat, full, nil
}
