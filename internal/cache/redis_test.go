package cache

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEncoding(t *testing.T) {
	rec := GameActionRecord{
		RoomID:      uuid.New(),
		MatchID:     uuid.New(),
		ActionIndex: 3,
		ActorUserID: uuid.New(),
		ActionType:  "action_discard",
		Timestamp:   1700000000000,
	}
	data, err := EncodeRecord(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action_payload":{}`)

	got, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec.RoomID, got.RoomID)
	assert.Equal(t, rec.ActionType, got.ActionType)
	assert.Equal(t, 3, got.ActionIndex)
}

func TestDecodeRecordRejectsGarbage(t *testing.T) {
	_, err := DecodeRecord([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeRecord([]byte(`{"action_type":"x"}`))
	assert.Error(t, err)
}

func TestNewQueueDefaultsName(t *testing.T) {
	assert.Equal(t, DefaultQueueName, NewQueue(nil, "").Name())
	assert.Equal(t, "custom", NewQueue(nil, "custom").Name())
}
