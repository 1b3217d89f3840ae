package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/okeyhub/okey101/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultRowsWinnerFirst(t *testing.T) {
	winner := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	res := game.Result{
		MatchID: uuid.New(),
		Status:  game.StatusFinished,
		Winner:  winner,
		Scores:  map[uuid.UUID]int{a: 40, winner: -101, b: 202, c: 12},
	}

	rows := ResultRows(res)
	require.Len(t, rows, 4)
	assert.Equal(t, winner, rows[0].PlayerID)
	assert.True(t, rows[0].DidWin)
	assert.Equal(t, -101, rows[0].Score)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].DidWin)
		if i > 1 {
			assert.Less(t, rows[i-1].PlayerID.String(), rows[i].PlayerID.String())
		}
	}
}

func TestResultRowsNoWinner(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	rows := ResultRows(game.Result{Status: game.StatusAborted, Scores: map[uuid.UUID]int{a: 0, b: 0}})
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.False(t, r.DidWin)
	}
}

func TestSchemaTables(t *testing.T) {
	for _, table := range []string{"matches", "match_results", "match_actions"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
