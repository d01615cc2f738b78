package models

import "github.com/google/uuid"

// User is a persisted account row. The realtime core never reads these;
// they back the CRUD facade, the leaderboard and the match recorder.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email,omitempty"`
	Password string    `json:"-"`
	Name     string    `json:"name"`

	Elo    int `json:"elo"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}
