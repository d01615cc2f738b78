package models

import (
	"github.com/google/uuid"
)

// RoundRecord is one resolved round. Immutable once appended to a match's
// history. A nil move means that player timed out on the shot clock.
type RoundRecord struct {
	Round       int     `json:"round"`
	Player1Move *string `json:"player1Move"`
	Player2Move *string `json:"player2Move"`
	Result      string  `json:"result"`
}

// MatchPlayer identifies one participant of a finished match.
type MatchPlayer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Score int       `json:"score"`
}

// MatchSummary is the finalized payload handed to the persistence
// collaborator when a match concludes. Produced exactly once per match.
// WinnerID is nil for the draw-by-forfeit edge case.
type MatchSummary struct {
	MatchID  uuid.UUID     `json:"matchId"`
	RoomCode string        `json:"roomCode"`
	Player1  MatchPlayer   `json:"player1"`
	Player2  MatchPlayer   `json:"player2"`
	WinnerID *uuid.UUID    `json:"winnerId"`
	Rounds   []RoundRecord `json:"rounds"`
	Forfeit  bool          `json:"forfeit"`
	EndedAt  int64         `json:"endedAt"`
}
