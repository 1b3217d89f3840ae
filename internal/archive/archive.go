// Package archive keeps a local bbolt copy of match openings and results.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/game"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	dealsBucket   = []byte("deals")
	resultsBucket = []byte("results")
)

var ErrNotFound = errors.New("not found")

// Store is a game.MatchRecorder backed by a single bbolt file.
type Store struct {
	db *bolt.DB
}

var _ game.MatchRecorder = (*Store)(nil)

// Open opens or creates the archive at path.
func Open(path string) (*Store, error) {
	logrus.Infof("opening match archive at %s", path)
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{dealsBucket, resultsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("can not create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("error closing archive: %w", err)
	}
	return nil
}

func (s *Store) put(bucket []byte, key uuid.UUID, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucket).Put(key[:], bytes); err != nil {
			return fmt.Errorf("put to bucket error: %w", err)
		}
		return nil
	})
}

func (s *Store) get(bucket []byte, key uuid.UUID, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucket).Get(key[:])
		if raw == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("json unmarshal error, %w", err)
		}
		return nil
	})
}

// RecordDeal stores the opening of a match under its id.
func (s *Store) RecordDeal(_ context.Context, snap game.DealSnapshot) error {
	return s.put(dealsBucket, snap.MatchID, snap)
}

// RecordResult stores the result of a match under its id.
func (s *Store) RecordResult(_ context.Context, _ uuid.UUID, res game.Result) error {
	return s.put(resultsBucket, res.MatchID, res)
}

func (s *Store) Deal(matchID uuid.UUID) (game.DealSnapshot, error) {
	var snap game.DealSnapshot
	err := s.get(dealsBucket, matchID, &snap)
	return snap, err
}

func (s *Store) Result(matchID uuid.UUID) (game.Result, error) {
	var res game.Result
	err := s.get(resultsBucket, matchID, &res)
	return res, err
}

// Results returns every archived result in key order.
func (s *Store) Results() ([]game.Result, error) {
	var list []game.Result
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(resultsBucket).ForEach(func(_, v []byte) error {
			var res game.Result
			if err := json.Unmarshal(v, &res); err != nil {
				return fmt.Errorf("json unmarshal error, %w", err)
			}
			list = append(list, res)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return list, nil
}
