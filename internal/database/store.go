// internal/database/store.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okeyhub/okey101/internal/cache"
	"github.com/okeyhub/okey101/internal/game"
)

// Connect opens a pool on url and pings it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id            UUID PRIMARY KEY,
	room_id       UUID,
	status        TEXT NOT NULL DEFAULT 'in_progress',
	initial_state JSONB,
	result        JSONB,
	start_time    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time      TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS match_results (
	match_id  UUID NOT NULL REFERENCES matches(id),
	player_id UUID NOT NULL,
	score     INTEGER NOT NULL,
	did_win   BOOLEAN NOT NULL,
	PRIMARY KEY (match_id, player_id)
);
CREATE TABLE IF NOT EXISTS match_actions (
	match_id       UUID NOT NULL REFERENCES matches(id),
	action_index   INTEGER NOT NULL,
	actor_user_id  UUID,
	action_type    TEXT NOT NULL,
	action_payload JSONB,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (match_id, action_index)
);
`

// Store persists match journals to Postgres. It implements game.MatchRecorder and the
// historian sink.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ game.MatchRecorder = (*Store)(nil)

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// RecordDeal stores the opening of a match.
func (s *Store) RecordDeal(ctx context.Context, snap game.DealSnapshot) error {
	js, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal deal snapshot: %w", err)
	}
	q := `
		INSERT INTO matches (id, room_id, status, initial_state, start_time)
		VALUES ($1, $2, 'in_progress', $3, $4)
		ON CONFLICT (id) DO UPDATE SET initial_state = $3, room_id = $2
	`
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, snap.MatchID, snap.RoomID, js, snap.StartedAt)
		return e
	})
	if err != nil {
		return fmt.Errorf("storing deal of match %s: %w", snap.MatchID, err)
	}
	return nil
}

// ResultRow is one player's line of a match result.
type ResultRow struct {
	PlayerID uuid.UUID
	Score    int
	DidWin   bool
}

// ResultRows flattens a result in a stable order: the winner first, then by player id.
func ResultRows(res game.Result) []ResultRow {
	rows := make([]ResultRow, 0, len(res.Scores))
	for id, score := range res.Scores {
		rows = append(rows, ResultRow{PlayerID: id, Score: score, DidWin: id == res.Winner})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DidWin != rows[j].DidWin {
			return rows[i].DidWin
		}
		return rows[i].PlayerID.String() < rows[j].PlayerID.String()
	})
	return rows
}

// RecordResult stores the end of a match and each player's score.
func (s *Store) RecordResult(ctx context.Context, roomID uuid.UUID, res game.Result) error {
	js, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsert := `
			INSERT INTO matches (id, room_id, status, result, end_time)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (id) DO UPDATE SET status = $3, result = $4, end_time = NOW()
		`
		if _, e := tx.Exec(ctx, upsert, res.MatchID, roomID, res.Status.String(), js); e != nil {
			return e
		}
		q := `
			INSERT INTO match_results (match_id, player_id, score, did_win)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (match_id, player_id)
			DO UPDATE SET score = $3, did_win = $4
		`
		for _, row := range ResultRows(res) {
			if _, e := tx.Exec(ctx, q, res.MatchID, row.PlayerID, row.Score, row.DidWin); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing result of match %s: %w", res.MatchID, err)
	}
	return nil
}

// InsertActions writes a batch of action records in one transaction. A game_end record
// completes its match if nothing else has.
func (s *Store) InsertActions(ctx context.Context, recs []cache.GameActionRecord) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of match %s: %w", rec.ActionIndex, rec.MatchID, err)
			}
		}
		return nil
	})
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertMatchQ := `
		INSERT INTO matches (id, room_id, status)
		VALUES ($1, $2, 'in_progress')
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertMatchQ, rec.MatchID, rec.RoomID); err != nil {
		return err
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO match_actions (
			match_id, action_index, actor_user_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id, action_index) DO NOTHING
	`
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.MatchID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, jsonPayload,
		time.UnixMilli(rec.Timestamp).UTC(),
	)
	if err != nil {
		return err
	}

	if rec.ActionType == string(game.EventGameEnd) {
		finalizeQ := `
			UPDATE matches
			SET status = 'completed', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.MatchID); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned flags a match that is still in progress.
func (s *Store) MarkAbandoned(ctx context.Context, matchID uuid.UUID) error {
	q := `
		UPDATE matches
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	if _, err := s.pool.Exec(ctx, q, matchID); err != nil {
		return fmt.Errorf("failed to mark match %s abandoned: %w", matchID, err)
	}
	return nil
}
