// internal/lobby/lobby.go
package lobby

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/game"
	"github.com/okeyhub/okey101/internal/models"
)

var (
	// ErrLobbyFull is returned when a fifth player tries to join.
	ErrLobbyFull = errors.New("lobby is full")
	// ErrInGame is returned for changes to a lobby whose match already started.
	ErrInGame = errors.New("lobby is already in game")
	// ErrEmptyName is returned for a blank player name.
	ErrEmptyName = errors.New("name must not be empty")
)

// Seat is a joined player. Seats are filled in join order; the first joiner plays first.
type Seat struct {
	UserID   uuid.UUID `json:"userId"`
	Name     string    `json:"name"`
	Number   int       `json:"seat"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Lobby gathers four players before a room is opened.
type Lobby struct {
	ID         uuid.UUID       `json:"id"`
	HouseRules game.HouseRules `json:"houseRules"`
	Seats      []Seat          `json:"seats"`
	RoomID     uuid.UUID       `json:"roomId,omitempty"`
	InGame     bool            `json:"inGame"`

	Mu sync.Mutex `json:"-"`
}

// NewLobbyWithDefaults creates an empty lobby playing rules.
func NewLobbyWithDefaults(rules game.HouseRules) *Lobby {
	return &Lobby{
		ID:         uuid.New(),
		HouseRules: rules,
		Seats:      make([]Seat, 0, game.Seats),
	}
}

// FormatName trims a nickname and capitalises each word.
func FormatName(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Join seats a new player and reports whether the lobby is now full. A full lobby is in game
// from that moment, so its seats cannot change while the room is being opened.
func (l *Lobby) Join(name string) (Seat, bool, error) {
	name = FormatName(name)
	if name == "" {
		return Seat{}, false, ErrEmptyName
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if len(l.Seats) >= game.Seats {
		return Seat{}, false, ErrLobbyFull
	}
	if l.InGame {
		return Seat{}, false, ErrInGame
	}
	s := Seat{
		UserID:   uuid.New(),
		Name:     name,
		Number:   len(l.Seats) + 1,
		JoinedAt: time.Now().UTC(),
	}
	l.Seats = append(l.Seats, s)
	full := len(l.Seats) == game.Seats
	if full {
		l.InGame = true
	}
	return s, full, nil
}

// Leave frees userID's seat before the match starts. Later joiners move up one seat.
func (l *Lobby) Leave(userID uuid.UUID) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.InGame {
		return ErrInGame
	}
	for i, s := range l.Seats {
		if s.UserID != userID {
			continue
		}
		l.Seats = append(l.Seats[:i], l.Seats[i+1:]...)
		for j := range l.Seats {
			l.Seats[j].Number = j + 1
		}
		return nil
	}
	return nil
}

// HasUser reports whether userID holds a seat.
func (l *Lobby) HasUser(userID uuid.UUID) bool {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	for _, s := range l.Seats {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// Players builds room players in seat order.
func (l *Lobby) Players() []*models.Player {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	out := make([]*models.Player, len(l.Seats))
	for i, s := range l.Seats {
		out[i] = &models.Player{ID: s.UserID, Name: s.Name, Seat: s.Number}
	}
	return out
}

// MarkInGame records the room the lobby's match runs in.
func (l *Lobby) MarkInGame(roomID uuid.UUID) {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	l.InGame = true
	l.RoomID = roomID
}

// Update applies rule changes while the lobby is still waiting. An invalid change leaves
// every rule as it was.
func (l *Lobby) Update(rules map[string]interface{}) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.InGame {
		return ErrInGame
	}
	next, err := game.ParseRules(rules, l.HouseRules)
	if err != nil {
		return err
	}
	l.HouseRules = next
	return nil
}

// Status is the public view of a lobby.
type Status struct {
	ID         uuid.UUID       `json:"id"`
	Seats      []Seat          `json:"seats"`
	Open       int             `json:"openSeats"`
	InGame     bool            `json:"inGame"`
	RoomID     uuid.UUID       `json:"roomId,omitempty"`
	HouseRules game.HouseRules `json:"houseRules"`
}

// Status returns a snapshot of the lobby.
func (l *Lobby) Status() Status {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	seats := make([]Seat, len(l.Seats))
	copy(seats, l.Seats)
	return Status{
		ID:         l.ID,
		Seats:      seats,
		Open:       game.Seats - len(seats),
		InGame:     l.InGame,
		RoomID:     l.RoomID,
		HouseRules: l.HouseRules,
	}
}
