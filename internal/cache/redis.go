// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for game action logs.
const DefaultQueueName = "okey_actions"

// GameActionRecord holds the minimal info needed by the historian.
type GameActionRecord struct {
	RoomID        uuid.UUID              `json:"room_id"`
	MatchID       uuid.UUID              `json:"match_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Queue is the action log list shared by the server (producer) and the historian (consumer).
type Queue struct {
	rdb  *redis.Client
	name string
}

// NewQueue wraps a connected client. An empty name selects DefaultQueueName.
func NewQueue(rdb *redis.Client, name string) *Queue {
	if name == "" {
		name = DefaultQueueName
	}
	return &Queue{rdb: rdb, name: name}
}

// Name returns the Redis key of the list.
func (q *Queue) Name() string {
	return q.name
}

// PublishGameAction serializes the given record to JSON, then pushes it to the Redis queue.
func (q *Queue) PublishGameAction(ctx context.Context, record GameActionRecord) error {
	data, err := EncodeRecord(record)
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. It returns nil, nil when the wait timed out.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*GameActionRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to BLPop from Redis list '%s': %w", q.name, err)
	}
	// BLPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPop reply of %d elements", len(res))
	}
	return DecodeRecord([]byte(res[1]))
}

// Close releases the underlying client.
func (q *Queue) Close() error {
	return q.rdb.Close()
}

// EncodeRecord marshals a record, defaulting a nil payload to an empty object.
func EncodeRecord(record GameActionRecord) ([]byte, error) {
	if record.ActionPayload == nil {
		record.ActionPayload = map[string]interface{}{}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}
	return data, nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(data []byte) (*GameActionRecord, error) {
	var rec GameActionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GameActionRecord: %w", err)
	}
	if rec.RoomID == uuid.Nil {
		return nil, errors.New("game action record has no room id")
	}
	return &rec, nil
}
