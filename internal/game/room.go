// internal/game/room.go
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/cache"
	"github.com/okeyhub/okey101/internal/combo"
	"github.com/okeyhub/okey101/internal/deck"
	"github.com/okeyhub/okey101/internal/models"
	"github.com/okeyhub/okey101/internal/tile"
	"github.com/sirupsen/logrus"
)

// ErrRoomClosed is returned for actions sent to a room whose loop has stopped.
var ErrRoomClosed = errors.New("room closed")

// OnGameEndFunc is invoked on the room loop once the match has ended.
type OnGameEndFunc func(roomID, lobbyID uuid.UUID, result Result)

// ActionPublisher receives every room action in order. cache.Queue implements it.
type ActionPublisher interface {
	PublishGameAction(ctx context.Context, record cache.GameActionRecord) error
}

// DealSnapshot is the persisted form of a match opening.
type DealSnapshot struct {
	RoomID    uuid.UUID               `json:"roomId"`
	MatchID   uuid.UUID               `json:"matchId"`
	Players   [Seats]uuid.UUID        `json:"players"`
	First     uuid.UUID               `json:"first"`
	Okey      tile.Okey               `json:"okey"`
	Indicator tile.Tile               `json:"indicator"`
	Hands     map[uuid.UUID]tile.Hand `json:"hands"`
	StockSize int                     `json:"stockSize"`
	StartedAt time.Time               `json:"startedAt"`
}

// MatchRecorder journals matches. Recorders are write-only; a room never reads them back.
type MatchRecorder interface {
	RecordDeal(ctx context.Context, snap DealSnapshot) error
	RecordResult(ctx context.Context, roomID uuid.UUID, res Result) error
}

// RoomConfig describes a room to open.
type RoomConfig struct {
	LobbyID  uuid.UUID
	Players  []*models.Player // seat order
	First    int              // 1-based first player; 0 selects seat 1
	Rules    HouseRules
	Shuffler deck.Shuffler
	Logger   *logrus.Logger
}

// Room owns one match and applies every action to it from a single goroutine, in the order
// the actions were received. Hooks must be set before Start.
type Room struct {
	ID      uuid.UUID
	LobbyID uuid.UUID
	Players []*models.Player

	// BroadcastFn is used to send events to all players. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)
	// BroadcastToPlayerFn sends an event to a single connected player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
	// OnGameEnd is invoked when the match ends for any reason.
	OnGameEnd OnGameEndFunc

	Publisher ActionPublisher
	Recorders []MatchRecorder
	Evaluator *combo.Evaluator

	log   *logrus.Entry
	match *Match

	actions     chan func()
	done        chan struct{}
	stopped     chan struct{}
	started     atomic.Bool
	startOnce   sync.Once
	closeOnce   sync.Once
	pending     sync.WaitGroup
	journal     *actionQueue
	actionIndex int
}

// NewRoom deals a new match. A construction failure is returned and no room is created.
func NewRoom(cfg RoomConfig) (*Room, error) {
	if len(cfg.Players) != Seats {
		return nil, reject(ErrDeckConstruction, "a room needs %d players, got %d", Seats, len(cfg.Players))
	}
	var ids [Seats]uuid.UUID
	for i, p := range cfg.Players {
		ids[i] = p.ID
		p.Seat = i + 1
	}
	first := cfg.First
	if first == 0 {
		first = 1
	}
	m, err := StartMatch(ids, first, cfg.Shuffler, cfg.Rules)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id := uuid.New()
	return &Room{
		ID:      id,
		LobbyID: cfg.LobbyID,
		Players: cfg.Players,
		log:     logger.WithFields(logrus.Fields{"room": id, "match": m.ID}),
		match:   m,
		actions: make(chan func()),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		journal: newActionQueue(),
	}, nil
}

// MatchID returns the id of the room's match.
func (r *Room) MatchID() uuid.UUID {
	return r.match.ID
}

// HasPlayer reports whether id is seated in the room. Seats never change after NewRoom.
func (r *Room) HasPlayer(id uuid.UUID) bool {
	return r.getPlayerByID(id) != nil
}

// Start runs the room loop and announces the deal.
func (r *Room) Start() {
	r.startOnce.Do(func() {
		r.started.Store(true)
		if r.Publisher != nil {
			r.pending.Add(1)
			go r.publishActions()
		}
		go r.run()
	})
}

// Close stops the loop after the action in progress. It is safe to call from a hook.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Done is closed once Close has been called.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the loop has stopped and background journal writes have finished.
func (r *Room) Wait() {
	if r.started.Load() {
		<-r.stopped
	}
	r.pending.Wait()
}

func (r *Room) run() {
	defer close(r.stopped)
	defer r.journal.close()
	r.begin()
	for {
		select {
		case <-r.done:
			return
		case fn := <-r.actions:
			fn()
		}
	}
}

// do runs fn on the room loop and returns its error.
func (r *Room) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case r.actions <- func() { reply <- fn() }:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-r.stopped:
		// the loop finishes the running action before it stops
		select {
		case err := <-reply:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

// Draw takes a tile for player from src.
func (r *Room) Draw(ctx context.Context, player uuid.UUID, src Source) (tile.Tile, error) {
	var t tile.Tile
	err := r.do(ctx, func() (err error) {
		t, err = r.draw(player, src)
		return err
	})
	return t, err
}

// Discard discards tile id from player's rack.
func (r *Room) Discard(ctx context.Context, player, id uuid.UUID) error {
	return r.do(ctx, func() error { return r.discard(player, id) })
}

// Commit lays spans of player's rack on the table and returns the server-computed total.
func (r *Room) Commit(ctx context.Context, player uuid.UUID, spans []Span, claimedTotal int) (int, error) {
	var total int
	err := r.do(ctx, func() (err error) {
		total, err = r.commit(player, spans, claimedTotal)
		return err
	})
	return total, err
}

// Finish ends the match with player discarding finalTile as winner.
func (r *Room) Finish(ctx context.Context, player, finalTile uuid.UUID) (*Result, error) {
	var res *Result
	err := r.do(ctx, func() (err error) {
		res, err = r.finish(player, finalTile)
		return err
	})
	return res, err
}

// Rearrange reorders player's rack.
func (r *Room) Rearrange(ctx context.Context, player uuid.UUID, layout []uuid.UUID) error {
	return r.do(ctx, func() error { return r.rearrange(player, layout) })
}

// Evaluate returns the greedy cover of player's current rack.
func (r *Room) Evaluate(ctx context.Context, player uuid.UUID) (combo.Evaluation, error) {
	var ev combo.Evaluation
	err := r.do(ctx, func() error {
		hand, ok := r.match.Hand(player)
		if !ok {
			return ErrUnknownPlayer
		}
		ev = r.evaluate(hand)
		return nil
	})
	return ev, err
}

// State returns the room state as seen by player.
func (r *Room) State(ctx context.Context, player uuid.UUID) (ObfGameState, error) {
	var st ObfGameState
	err := r.do(ctx, func() error {
		st = r.currentState(player)
		return nil
	})
	return st, err
}

// Exhaust ends the match with no winner. The stock must be empty.
func (r *Room) Exhaust(ctx context.Context) (*Result, error) {
	var res *Result
	err := r.do(ctx, func() (err error) {
		res, err = r.exhaust()
		return err
	})
	return res, err
}

// Abort ends the match without scoring.
func (r *Room) Abort(ctx context.Context, reason string) (*Result, error) {
	var res *Result
	err := r.do(ctx, func() (err error) {
		res, err = r.abort(reason)
		return err
	})
	return res, err
}

// Connect attaches conn to player and sends them the current state. Events for player are
// queued on outbox; its reader owns every write to conn.
func (r *Room) Connect(ctx context.Context, player uuid.UUID, conn *websocket.Conn, outbox chan<- []byte) error {
	return r.do(ctx, func() error {
		p := r.getPlayerByID(player)
		if p == nil {
			return ErrUnknownPlayer
		}
		if p.Connected {
			r.log.Infof("Player %s reconnecting while marked as connected.", player)
		}
		p.Connected = true
		p.Conn = conn
		p.Outbox = outbox
		r.logAction(player, "player_connect", nil)
		r.broadcastSyncStateToAll()
		return nil
	})
}

// Disconnect marks player as gone. Under AbortOnDisconnect an active match is aborted.
func (r *Room) Disconnect(ctx context.Context, player uuid.UUID) error {
	return r.do(ctx, func() error {
		p := r.getPlayerByID(player)
		if p == nil {
			return ErrUnknownPlayer
		}
		if !p.Connected {
			return nil
		}
		p.Connected = false
		p.Conn = nil
		p.Outbox = nil
		r.logAction(player, "player_disconnect", nil)

		if r.match.Status == StatusActive && r.match.Rules.AbortOnDisconnect {
			r.log.Infof("Player %s disconnected, aborting match.", player)
			_, err := r.abort(fmt.Sprintf("player %s disconnected", player))
			return err
		}
		r.broadcastSyncStateToAll()
		return nil
	})
}

// Action payloads decoded by HandlePlayerAction.
type (
	drawPayload struct {
		Source Source `json:"source"`
	}
	tilePayload struct {
		TileID uuid.UUID `json:"tile_id"`
	}
	commitPayload struct {
		Combinations []Span `json:"combinations"`
		ClaimedTotal int    `json:"claimed_total"`
	}
	rearrangePayload struct {
		Layout []uuid.UUID `json:"layout"`
	}
)

// HandlePlayerAction routes a client message to the matching operation. Rejections are also
// reported to the player as private_action_fail.
func (r *Room) HandlePlayerAction(ctx context.Context, player uuid.UUID, action models.GameAction) error {
	return r.do(ctx, func() error {
		decode := func(v interface{}) error {
			if len(action.Payload) == 0 {
				return nil
			}
			if err := json.Unmarshal(action.Payload, v); err != nil {
				e := reject(ErrBadAction, "invalid payload for %s: %v", action.ActionType, err)
				r.rejectAction(player, action.ActionType, e)
				return e
			}
			return nil
		}

		switch action.ActionType {
		case "action_draw":
			var p drawPayload
			if err := decode(&p); err != nil {
				return err
			}
			_, err := r.draw(player, p.Source)
			return err
		case "action_discard":
			var p tilePayload
			if err := decode(&p); err != nil {
				return err
			}
			return r.discard(player, p.TileID)
		case "action_commit":
			var p commitPayload
			if err := decode(&p); err != nil {
				return err
			}
			_, err := r.commit(player, p.Combinations, p.ClaimedTotal)
			return err
		case "action_finish":
			var p tilePayload
			if err := decode(&p); err != nil {
				return err
			}
			_, err := r.finish(player, p.TileID)
			return err
		case "action_rearrange":
			var p rearrangePayload
			if err := decode(&p); err != nil {
				return err
			}
			return r.rearrange(player, p.Layout)
		case "action_evaluate":
			hand, ok := r.match.Hand(player)
			if !ok {
				return ErrUnknownPlayer
			}
			ev := r.evaluate(hand)
			r.fireEventToPlayer(player, GameEvent{Type: EventPrivateEvaluation, Evaluation: &ev})
			return nil
		case "action_sync":
			r.sendSyncState(player)
			return nil
		default:
			e := reject(ErrBadAction, "unknown action type %q", action.ActionType)
			r.rejectAction(player, action.ActionType, e)
			return e
		}
	})
}

// begin announces the deal. Runs on the loop.
func (r *Room) begin() {
	m := r.match
	o := m.Opening()
	r.log.Infof("Match started. Okey %s, indicator %s, stock %d.", o.Okey, o.Indicator, o.StockSize)
	r.logAction(uuid.Nil, "game_start", map[string]interface{}{
		"okey":       o.Okey.String(),
		"indicator":  o.Indicator.String(),
		"stock_size": o.StockSize,
		"first":      o.First,
	})

	for _, p := range r.Players {
		indicator := buildEventTile(o.Indicator, true, nil)
		r.fireEventToPlayer(p.ID, GameEvent{
			Type: EventPrivateGameStart,
			User: &EventUser{ID: p.ID, Seat: p.Seat},
			Tile: indicator,
			Hand: o.Hands[p.ID],
			Payload: map[string]interface{}{
				"okey":      o.Okey,
				"stockSize": o.StockSize,
				"first":     o.First,
			},
		})
	}

	snap := DealSnapshot{
		RoomID:    r.ID,
		MatchID:   m.ID,
		Players:   m.Players(),
		First:     o.First,
		Okey:      o.Okey,
		Indicator: o.Indicator,
		Hands:     o.Hands,
		StockSize: o.StockSize,
		StartedAt: time.Now().UTC(),
	}
	r.record("deal", func(ctx context.Context, rec MatchRecorder) error {
		return rec.RecordDeal(ctx, snap)
	})
	r.broadcastPlayerTurn()
}

func (r *Room) draw(player uuid.UUID, src Source) (tile.Tile, error) {
	t, err := r.match.Draw(player, src)
	if errors.Is(err, ErrStockEmpty) {
		r.rejectAction(player, "action_draw", err)
		r.log.Info("Stock exhausted.")
		r.fireEvent(GameEvent{Type: EventGameDeckEmpty, User: r.eventUser(player)})
		r.logAction(player, string(EventGameDeckEmpty), nil)
		if r.match.Rules.EndOnStockExhausted {
			if _, xerr := r.exhaust(); xerr != nil {
				r.log.WithError(xerr).Error("Failed to end match on exhausted stock.")
			}
		}
		return tile.Tile{}, err
	}
	if err != nil {
		r.rejectAction(player, "action_draw", err)
		return tile.Tile{}, err
	}

	slot := r.slotOf(player, t.ID)
	// taking a discard reveals a tile everyone has seen; stock tiles stay hidden
	r.fireEvent(GameEvent{
		Type:   EventPlayerDraw,
		User:   r.eventUser(player),
		Tile:   buildEventTile(t, src == SourceLeftDiscard, nil),
		Source: src.String(),
		Payload: map[string]interface{}{
			"stockSize": r.match.StockSize(),
		},
	})
	r.fireEventToPlayer(player, GameEvent{
		Type:   EventPrivateDraw,
		Tile:   buildEventTile(t, true, &slot),
		Source: src.String(),
	})
	r.logAction(player, "action_draw", map[string]interface{}{"source": src.String(), "tile_id": t.ID})
	return t, nil
}

func (r *Room) discard(player, id uuid.UUID) error {
	hand, _ := r.match.Hand(player)
	var t tile.Tile
	if i := hand.Index(id); i >= 0 {
		t = hand[i]
	}
	if err := r.match.Discard(player, id); err != nil {
		r.rejectAction(player, "action_discard", err)
		return err
	}

	r.fireEvent(GameEvent{
		Type: EventPlayerDiscard,
		User: r.eventUser(player),
		Tile: buildEventTile(t, true, nil),
	})
	r.logAction(player, "action_discard", map[string]interface{}{"tile_id": id})

	if r.match.Status != StatusActive {
		// the last tile on the rack was discarded
		r.endMatch(*r.match.Result)
		return nil
	}
	r.broadcastPlayerTurn()
	return nil
}

func (r *Room) commit(player uuid.UUID, spans []Span, claimedTotal int) (int, error) {
	before := len(r.match.Ledger.Entries(player))
	total, err := r.match.Commit(player, spans, claimedTotal)
	if err != nil {
		r.rejectAction(player, "action_commit", err)
		return 0, err
	}
	if total != claimedTotal {
		r.log.Debugf("Player %s claimed %d points for a commit worth %d.", player, claimedTotal, total)
	}

	entries := r.match.Ledger.Entries(player)[before:]
	r.fireEvent(GameEvent{
		Type:         EventPlayerCommit,
		User:         r.eventUser(player),
		Combinations: entries,
		Payload: map[string]interface{}{
			"total":          total,
			"committedScore": r.match.Ledger.Total(player),
		},
	})
	r.logAction(player, "action_commit", map[string]interface{}{
		"combinations":  spans,
		"total":         total,
		"claimed_total": claimedTotal,
	})
	r.sendSyncState(player)
	return total, nil
}

func (r *Room) finish(player, finalTile uuid.UUID) (*Result, error) {
	hand, _ := r.match.Hand(player)
	var t tile.Tile
	if i := hand.Index(finalTile); i >= 0 {
		t = hand[i]
	}
	res, err := r.match.FinishHand(player, finalTile)
	if err != nil {
		r.rejectAction(player, "action_finish", err)
		return nil, err
	}
	r.fireEvent(GameEvent{
		Type: EventPlayerDiscard,
		User: r.eventUser(player),
		Tile: buildEventTile(t, true, nil),
	})
	r.logAction(player, "action_finish", map[string]interface{}{"tile_id": finalTile})
	r.endMatch(*res)
	return res, nil
}

func (r *Room) rearrange(player uuid.UUID, layout []uuid.UUID) error {
	if err := r.match.Rearrange(player, layout); err != nil {
		r.rejectAction(player, "action_rearrange", err)
		return err
	}
	r.logAction(player, "action_rearrange", map[string]interface{}{"slots": len(layout)})
	return nil
}

func (r *Room) exhaust() (*Result, error) {
	res, err := r.match.Exhaust()
	if err != nil {
		return nil, err
	}
	r.endMatch(*res)
	return res, nil
}

func (r *Room) abort(reason string) (*Result, error) {
	res, err := r.match.Abort(reason)
	if err != nil {
		return nil, err
	}
	r.endMatch(*res)
	return res, nil
}

// endMatch announces and journals a result, then hands it to OnGameEnd.
func (r *Room) endMatch(res Result) {
	r.log.WithFields(logrus.Fields{"status": res.Status, "winner": res.Winner}).Infof("Match ended after %d turns.", res.Turns)
	r.fireEvent(GameEvent{Type: EventGameEnd, Result: &res})
	r.logAction(res.Winner, string(EventGameEnd), map[string]interface{}{
		"status": res.Status.String(),
		"reason": res.Reason,
		"scores": res.Scores,
	})
	r.record("result", func(ctx context.Context, rec MatchRecorder) error {
		return rec.RecordResult(ctx, r.ID, res)
	})
	if r.OnGameEnd != nil {
		r.OnGameEnd(r.ID, r.LobbyID, res)
	}
}

// rejectAction reports a failed action to its player and re-sends their state.
func (r *Room) rejectAction(player uuid.UUID, action string, err error) {
	r.log.WithFields(logrus.Fields{"player": player, "kind": KindOf(err), "code": CodeOf(err)}).Debugf("Rejected %s: %v", action, err)
	ev := GameEvent{Type: EventPrivateActionFail, Payload: map[string]interface{}{"action": action}}
	var e *Error
	if errors.As(err, &e) {
		ev.Error = e
	} else {
		ev.Error = &Error{Message: err.Error()}
	}
	r.fireEventToPlayer(player, ev)
	r.logAction(player, "action_rejected", map[string]interface{}{"action": action, "code": CodeOf(err)})
	if r.getPlayerByID(player) != nil {
		r.sendSyncState(player)
	}
}

// broadcastPlayerTurn notifies all players whose turn it is now.
func (r *Room) broadcastPlayerTurn() {
	if r.match.Status != StatusActive {
		return
	}
	current := r.match.CurrentPlayerID()
	r.fireEvent(GameEvent{
		Type: EventGamePlayerTurn,
		User: r.eventUser(current),
		Payload: map[string]interface{}{
			"turn":      r.match.Turn.TurnCounter,
			"drawRight": r.match.Turn.DrawRight,
		},
	})
	r.logAction(current, string(EventGamePlayerTurn), map[string]interface{}{"turn": r.match.Turn.TurnCounter})
}

func (r *Room) fireEvent(ev GameEvent) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event to one connected player.
func (r *Room) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if r.BroadcastToPlayerFn == nil {
		return
	}
	if p := r.getPlayerByID(playerID); p != nil && p.Connected {
		r.BroadcastToPlayerFn(playerID, ev)
	}
}

func (r *Room) sendSyncState(playerID uuid.UUID) {
	state := r.currentState(playerID)
	r.fireEventToPlayer(playerID, GameEvent{Type: EventPrivateSyncState, State: &state})
}

func (r *Room) broadcastSyncStateToAll() {
	for _, p := range r.Players {
		if p.Connected {
			r.sendSyncState(p.ID)
		}
	}
}

func (r *Room) getPlayerByID(id uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) eventUser(id uuid.UUID) *EventUser {
	return &EventUser{ID: id, Seat: r.match.SeatOf(id)}
}

func (r *Room) slotOf(player, id uuid.UUID) int {
	hand, _ := r.match.Hand(player)
	return hand.Index(id)
}

func (r *Room) evaluate(hand tile.Hand) combo.Evaluation {
	if r.Evaluator != nil {
		return r.Evaluator.Evaluate(hand, r.match.Okey)
	}
	return combo.EvaluateHand(hand, r.match.Okey)
}

// logAction queues the action for the publisher. Runs on the loop, so indexes are ordered.
func (r *Room) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	r.actionIndex++
	if r.Publisher == nil {
		return
	}
	r.journal.push(cache.GameActionRecord{
		RoomID:        r.ID,
		MatchID:       r.match.ID,
		ActionIndex:   r.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	})
}

// publishActions hands queued records to the publisher one at a time until the loop stops
// and the queue is drained.
func (r *Room) publishActions() {
	defer r.pending.Done()
	for {
		batch, closed := r.journal.take()
		for _, rec := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := r.Publisher.PublishGameAction(ctx, rec); err != nil {
				r.log.WithError(err).Warnf("Failed to publish action %d.", rec.ActionIndex)
			}
			cancel()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-r.journal.wake
	}
}

// record runs fn against every recorder in the background.
func (r *Room) record(what string, fn func(ctx context.Context, rec MatchRecorder) error) {
	for _, rec := range r.Recorders {
		r.pending.Add(1)
		go func(rec MatchRecorder) {
			defer r.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := fn(ctx, rec); err != nil {
				r.log.WithError(err).Warnf("Failed to record match %s.", what)
			}
		}(rec)
	}
}
