package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rps-arena/server/internal/models"
)

// EloDelta is the flat rating swing applied per decided match.
const EloDelta = 16

// statLine is one player's rating and tally adjustment for a single match.
// The elo delta is signed; the SQL floors the resulting rating at zero.
type statLine struct {
	ID     uuid.UUID
	Elo    int
	Wins   int
	Losses int
	Draws  int
}

// resultLines derives the per-player adjustments from a summary. A summary
// without a winner is a draw for both sides; guest players (nil ids) have
// no account to adjust and produce no line.
func resultLines(sum models.MatchSummary) []statLine {
	var lines []statLine
	for _, p := range []models.MatchPlayer{sum.Player1, sum.Player2} {
		if p.ID == uuid.Nil {
			continue
		}
		line := statLine{ID: p.ID}
		switch {
		case sum.WinnerID == nil:
			line.Draws = 1
		case *sum.WinnerID == p.ID:
			line.Elo = EloDelta
			line.Wins = 1
		default:
			line.Elo = -EloDelta
			line.Losses = 1
		}
		lines = append(lines, line)
	}
	return lines
}

// CommitMatchResult persists a finished match in one transaction: both
// participants are upserted (guest sessions get rows on first result), the
// match row is inserted, and ratings plus win/loss/draw tallies are applied.
// A summary without a winner counts as a draw for both players.
func CommitMatchResult(ctx context.Context, sum models.MatchSummary) error {
	roundsJSON, err := json.Marshal(sum.Rounds)
	if err != nil {
		return fmt.Errorf("failed to marshal rounds: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, p := range []models.MatchPlayer{sum.Player1, sum.Player2} {
			if p.ID == uuid.Nil {
				continue
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, elo, wins, losses, draws)
				VALUES ($1, $2, $3, 0, 0, 0)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
			`, p.ID, p.Name, StartingElo)
			if err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO matches (id, room_code, player1_id, player2_id, winner_id,
			                     player1_score, player2_score, rounds, forfeit, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			sum.MatchID, sum.RoomCode,
			nullableID(sum.Player1.ID), nullableID(sum.Player2.ID), sum.WinnerID,
			sum.Player1.Score, sum.Player2.Score,
			roundsJSON, sum.Forfeit, time.Unix(sum.EndedAt, 0),
		)
		if err != nil {
			return err
		}

		for _, ln := range resultLines(sum) {
			if _, err := tx.Exec(ctx, `
				UPDATE users
				SET elo = GREATEST(elo + $1, 0),
				    wins = wins + $2, losses = losses + $3, draws = draws + $4
				WHERE id = $5
			`, ln.Elo, ln.Wins, ln.Losses, ln.Draws, ln.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit match %s: %w", sum.MatchID, err)
	}
	return nil
}

// GetMatchHistory returns a user's most recent matches, newest first.
func GetMatchHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.MatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
		SELECT m.id, m.room_code, m.player1_id, p1.name, m.player1_score,
		       m.player2_id, p2.name, m.player2_score,
		       m.winner_id, m.rounds, m.forfeit, m.ended_at
		FROM matches m
		LEFT JOIN users p1 ON p1.id = m.player1_id
		LEFT JOIN users p2 ON p2.id = m.player2_id
		WHERE m.player1_id = $1 OR m.player2_id = $1
		ORDER BY m.ended_at DESC
		LIMIT $2
	`
	rows, err := DB.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	var matches []models.MatchSummary
	for rows.Next() {
		var (
			sum        models.MatchSummary
			p1ID, p2ID *uuid.UUID
			p1Name     *string
			p2Name     *string
			roundsJSON []byte
			endedAt    time.Time
		)
		err := rows.Scan(&sum.MatchID, &sum.RoomCode, &p1ID, &p1Name, &sum.Player1.Score,
			&p2ID, &p2Name, &sum.Player2.Score,
			&sum.WinnerID, &roundsJSON, &sum.Forfeit, &endedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		if p1ID != nil {
			sum.Player1.ID = *p1ID
		}
		if p2ID != nil {
			sum.Player2.ID = *p2ID
		}
		if p1Name != nil {
			sum.Player1.Name = *p1Name
		}
		if p2Name != nil {
			sum.Player2.Name = *p2Name
		}
		if err := json.Unmarshal(roundsJSON, &sum.Rounds); err != nil {
			return nil, fmt.Errorf("failed to decode rounds for match %s: %w", sum.MatchID, err)
		}
		sum.EndedAt = endedAt.Unix()
		matches = append(matches, sum)
	}
	return matches, rows.Err()
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
