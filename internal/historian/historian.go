// Package historian drains the room action queue into durable storage and marks matches
// abandoned once they go quiet.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/cache"
	"github.com/okeyhub/okey101/internal/game"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source yields queued action records. Pop returns nil, nil when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.GameActionRecord, error)
}

// Sink persists batches of records.
type Sink interface {
	InsertActions(ctx context.Context, recs []cache.GameActionRecord) error
	MarkAbandoned(ctx context.Context, matchID uuid.UUID) error
}

type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	Inactivity    time.Duration // quiet period after which a match is abandoned
	PopTimeout    time.Duration
	CheckInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 500 * time.Millisecond
	}
	if c.Inactivity <= 0 {
		c.Inactivity = 10 * time.Minute
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 3 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
	return c
}

// Service batches records from a Source into a Sink.
type Service struct {
	src    Source
	sink   Sink
	cfg    Config
	logger *logrus.Logger
	now    func() time.Time

	lastActivity sync.Map // map[uuid.UUID]time.Time keyed by match

	batchMu   sync.Mutex
	batch     []cache.GameActionRecord
	lastFlush time.Time
}

func New(src Source, sink Sink, cfg Config, logger *logrus.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		src:       src,
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		batch:     make([]cache.GameActionRecord, 0, cfg.BatchSize),
		lastFlush: time.Now(),
	}
}

// Run blocks until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("historian started")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.inactivityLoop(gctx) })
	err := g.Wait()

	// ctx is done; use a fresh one for the final write.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.logger.Info("historian stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		rec, err := s.src.Pop(ctx, s.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WithError(err).Error("historian: pop failed")
		} else if rec != nil {
			s.Accept(ctx, *rec)
		}
		if s.flushDue() {
			s.Flush(ctx)
		}
	}
}

// Accept adds a record to the pending batch, flushing once the batch is full.
func (s *Service) Accept(ctx context.Context, rec cache.GameActionRecord) {
	if rec.ActionType == string(game.EventGameEnd) {
		s.lastActivity.Delete(rec.MatchID)
	} else {
		s.lastActivity.Store(rec.MatchID, s.now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one call to the sink. A failed batch is put back in
// front of anything that arrived meanwhile.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	s.lastFlush = s.now()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]cache.GameActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertActions(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("count", len(pending)).Error("historian: flush failed")
		s.batchMu.Lock()
		s.batch = append(pending, s.batch...)
		s.batchMu.Unlock()
		return
	}
	s.logger.WithField("count", len(pending)).Debug("historian: flushed batch")
}

func (s *Service) flushDue() bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return s.now().Sub(s.lastFlush) >= s.cfg.FlushInterval
}

// Pending reports the number of records not yet written.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

func (s *Service) inactivityLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepInactive(ctx)
		}
	}
}

// SweepInactive marks every match quiet for longer than the inactivity window as abandoned
// and returns their ids.
func (s *Service) SweepInactive(ctx context.Context) []uuid.UUID {
	now := s.now()
	var abandoned []uuid.UUID
	s.lastActivity.Range(func(key, value any) bool {
		matchID := key.(uuid.UUID)
		last := value.(time.Time)
		if now.Sub(last) < s.cfg.Inactivity {
			return true
		}
		// the match row must exist before it can be marked
		s.Flush(ctx)
		if err := s.sink.MarkAbandoned(ctx, matchID); err != nil {
			s.logger.WithError(err).WithField("match", matchID).Error("historian: mark abandoned failed")
			return true
		}
		s.lastActivity.Delete(matchID)
		abandoned = append(abandoned, matchID)
		s.logger.WithField("match", matchID).Info("historian: match abandoned")
		return true
	})
	return abandoned
}
