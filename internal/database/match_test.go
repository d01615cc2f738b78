package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rps-arena/server/internal/models"
)

func summaryBetween(p1, p2 uuid.UUID) models.MatchSummary {
	return models.MatchSummary{
		MatchID: uuid.New(),
		Player1: models.MatchPlayer{ID: p1, Name: "alice", Score: 2},
		Player2: models.MatchPlayer{ID: p2, Name: "bob", Score: 1},
	}
}

func TestResultLinesDecidedMatch(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	sum := summaryBetween(p1, p2)
	sum.WinnerID = &p1

	lines := resultLines(sum)
	require.Len(t, lines, 2)

	assert.Equal(t, p1, lines[0].ID)
	assert.Equal(t, EloDelta, lines[0].Elo)
	assert.Equal(t, 1, lines[0].Wins)
	assert.Equal(t, 0, lines[0].Losses)
	assert.Equal(t, 0, lines[0].Draws)

	assert.Equal(t, p2, lines[1].ID)
	assert.Equal(t, -EloDelta, lines[1].Elo)
	assert.Equal(t, 0, lines[1].Wins)
	assert.Equal(t, 1, lines[1].Losses)
	assert.Equal(t, 0, lines[1].Draws)
}

func TestResultLinesNoWinnerIsDraw(t *testing.T) {
	sum := summaryBetween(uuid.New(), uuid.New())

	lines := resultLines(sum)
	require.Len(t, lines, 2)
	for _, ln := range lines {
		assert.Equal(t, 0, ln.Elo)
		assert.Equal(t, 0, ln.Wins)
		assert.Equal(t, 0, ln.Losses)
		assert.Equal(t, 1, ln.Draws)
	}
}

func TestResultLinesSkipGuestPlayers(t *testing.T) {
	p1 := uuid.New()
	sum := summaryBetween(p1, uuid.Nil)
	sum.WinnerID = &p1

	lines := resultLines(sum)
	require.Len(t, lines, 1)
	assert.Equal(t, p1, lines[0].ID)
	assert.Equal(t, 1, lines[0].Wins)
}

func TestResultLinesGuestBeatsRegistered(t *testing.T) {
	p2 := uuid.New()
	sum := summaryBetween(uuid.Nil, p2)
	winner := uuid.Nil
	sum.WinnerID = &winner

	// Only the registered loser is adjusted.
	lines := resultLines(sum)
	require.Len(t, lines, 1)
	assert.Equal(t, p2, lines[0].ID)
	assert.Equal(t, -EloDelta, lines[0].Elo)
	assert.Equal(t, 1, lines[0].Losses)
}
