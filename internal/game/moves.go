// internal/game/moves.go
package game

// Move is one of the three playable hand shapes.
type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

// beats maps each move to the move it defeats.
var beats = map[Move]Move{
	MoveRock:     MoveScissors,
	MovePaper:    MoveRock,
	MoveScissors: MovePaper,
}

// Valid reports whether m is one of the three known moves.
func (m Move) Valid() bool {
	_, ok := beats[m]
	return ok
}

// Outcome is the result of resolving two moves against each other.
type Outcome string

const (
	OutcomeFirst  Outcome = "player1"
	OutcomeSecond Outcome = "player2"
	OutcomeTie    Outcome = "tie"
)

// Resolve returns the outcome of moveA vs moveB. It is total over valid
// moves: equal moves tie, otherwise exactly one side wins.
func Resolve(moveA, moveB Move) Outcome {
	if moveA == moveB {
		return OutcomeTie
	}
	if beats[moveA] == moveB {
		return OutcomeFirst
	}
	return OutcomeSecond
}

// WinsNeeded returns the number of round wins that clinches a best-of-n
// series.
func WinsNeeded(bestOf int) int {
	return (bestOf + 1) / 2
}
