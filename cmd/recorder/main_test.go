package main

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rps-arena/server/internal/models"
)

func TestDecodeSummary(t *testing.T) {
	winner := uuid.New()
	move := "rock"
	raw, err := json.Marshal(models.MatchSummary{
		MatchID:  uuid.New(),
		RoomCode: "AB12CD",
		Player1:  models.MatchPlayer{ID: winner, Name: "alice", Score: 4},
		Player2:  models.MatchPlayer{ID: uuid.New(), Name: "bob", Score: 2},
		WinnerID: &winner,
		Rounds:   []models.RoundRecord{{Round: 1, Player1Move: &move, Result: "player1"}},
		Forfeit:  false,
	})
	require.NoError(t, err)

	sum, err := decodeSummary(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", sum.RoomCode)
	assert.Equal(t, "alice", sum.Player1.Name)
	require.NotNil(t, sum.WinnerID)
	assert.Equal(t, winner, *sum.WinnerID)
	require.Len(t, sum.Rounds, 1)
	require.NotNil(t, sum.Rounds[0].Player1Move)
	assert.Equal(t, "rock", *sum.Rounds[0].Player1Move)
}

func TestDecodeSummaryRejectsMalformedPayload(t *testing.T) {
	_, err := decodeSummary("{not json")
	assert.Error(t, err)
}
