// internal/room/room.go
package room

import (
	"github.com/rps-arena/server/internal/game"
	"github.com/rps-arena/server/internal/models"
	"github.com/rps-arena/server/internal/protocol"
)

// member is one session's presence inside a room. out is nil while the
// member is disconnected inside the reconnect grace window.
type member struct {
	id   string
	name string
	out  chan<- any
}

// Room holds the full state of one match room. It is only ever touched by
// the owning Actor goroutine, so no locking is needed.
type Room struct {
	Code     string
	HostID   string
	IsPublic bool
	Settings protocol.RoomSettings

	// Players is the ordered player list; never more than two entries.
	Players    []string
	Spectators []string
	members    map[string]*member

	Scores      map[string]int
	Round       int
	Started     bool
	MatchWinner string

	moves    map[string]game.Move
	timedOut map[string]bool
	ready    map[string]bool
	history  []models.RoundRecord
}

func newRoom(code string, host Member, settings protocol.RoomSettings, isPublic bool) *Room {
	r := &Room{
		Code:     code,
		HostID:   host.ID,
		IsPublic: isPublic,
		Settings: settings,
		Players:  []string{host.ID},
		members: map[string]*member{
			host.ID: {id: host.ID, name: host.Name, out: host.Out},
		},
		Scores:   map[string]int{host.ID: 0},
		Round:    1,
		moves:    make(map[string]game.Move),
		timedOut: make(map[string]bool),
		ready:    make(map[string]bool),
	}
	return r
}

// isPlayer reports whether id occupies a player slot.
func (r *Room) isPlayer(id string) bool {
	for _, p := range r.Players {
		if p == id {
			return true
		}
	}
	return false
}

func (r *Room) isMember(id string) bool {
	_, ok := r.members[id]
	return ok
}

func (r *Room) memberName(id string) string {
	if m, ok := r.members[id]; ok && m.name != "" {
		return m.name
	}
	return "Unknown"
}

// otherPlayer returns the player slot not occupied by id, or "".
func (r *Room) otherPlayer(id string) string {
	for _, p := range r.Players {
		if p != id {
			return p
		}
	}
	return ""
}

func (r *Room) addPlayer(m Member) {
	r.Players = append(r.Players, m.ID)
	r.Scores[m.ID] = 0
	r.members[m.ID] = &member{id: m.ID, name: m.Name, out: m.Out}
}

func (r *Room) addSpectator(m Member) {
	r.Spectators = append(r.Spectators, m.ID)
	r.members[m.ID] = &member{id: m.ID, name: m.Name, out: m.Out}
}

// removeMember drops id from every membership structure. The caller handles
// host reassignment and game-state fallout.
func (r *Room) removeMember(id string) {
	for i, p := range r.Players {
		if p == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	for i, s := range r.Spectators {
		if s == id {
			r.Spectators = append(r.Spectators[:i], r.Spectators[i+1:]...)
			break
		}
	}
	delete(r.members, id)
	delete(r.ready, id)
	delete(r.moves, id)
	delete(r.timedOut, id)
}

func (r *Room) empty() bool {
	return len(r.Players) == 0 && len(r.Spectators) == 0
}

// reassignHost promotes the next player, else the next spectator. Returns
// false when nobody is left to take the role.
func (r *Room) reassignHost() bool {
	if len(r.Players) > 0 {
		r.HostID = r.Players[0]
		return true
	}
	if len(r.Spectators) > 0 {
		r.HostID = r.Spectators[0]
		return true
	}
	return false
}

// startGame begins a fresh game: scores zeroed for the current players,
// round counter back to 1, history cleared.
func (r *Room) startGame() {
	r.Started = true
	r.Round = 1
	r.MatchWinner = ""
	r.moves = make(map[string]game.Move)
	r.timedOut = make(map[string]bool)
	r.history = nil
	for _, p := range r.Players {
		r.Scores[p] = 0
	}
}

// resetGame returns the room to its pre-game state without anyone leaving.
// Used for rematch resets, returnToLobby and the structural reset that
// follows a mid-game departure.
func (r *Room) resetGame() {
	r.Started = false
	r.MatchWinner = ""
	r.Round = 1
	r.moves = make(map[string]game.Move)
	r.timedOut = make(map[string]bool)
	r.ready = make(map[string]bool)
	r.history = nil
	for _, p := range r.Players {
		r.Scores[p] = 0
	}
}

// allPlayersReady reports whether two players are present and both have
// signaled readiness.
func (r *Room) allPlayersReady() bool {
	if len(r.Players) != 2 {
		return false
	}
	for _, p := range r.Players {
		if !r.ready[p] {
			return false
		}
	}
	return true
}

// allMovesIn reports whether every current player has either moved or been
// marked timed out this round.
func (r *Room) allMovesIn() bool {
	if len(r.Players) != 2 {
		return false
	}
	for _, p := range r.Players {
		if _, moved := r.moves[p]; !moved && !r.timedOut[p] {
			return false
		}
	}
	return true
}

// Snapshot builds the full observable room state embedded into
// state-bearing wire messages.
func (r *Room) Snapshot() protocol.RoomSnapshot {
	players := make([]protocol.PlayerInfo, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, protocol.PlayerInfo{ID: p, Name: r.memberName(p)})
	}
	spectators := make([]protocol.PlayerInfo, 0, len(r.Spectators))
	for _, s := range r.Spectators {
		spectators = append(spectators, protocol.PlayerInfo{ID: s, Name: r.memberName(s)})
	}
	scores := make(map[string]int, len(r.Scores))
	for _, p := range r.Players {
		scores[p] = r.Scores[p]
	}
	readyPlayers := make([]string, 0, len(r.ready))
	for _, p := range r.Players {
		if r.ready[p] {
			readyPlayers = append(readyPlayers, p)
		}
	}
	var winner *string
	if r.MatchWinner != "" {
		w := r.MatchWinner
		winner = &w
	}
	return protocol.RoomSnapshot{
		RoomCode:     r.Code,
		HostID:       r.HostID,
		Players:      players,
		Spectators:   spectators,
		Settings:     r.Settings,
		CurrentRound: r.Round,
		GameStarted:  r.Started,
		MatchWinner:  winner,
		Scores:       scores,
		ReadyPlayers: readyPlayers,
	}
}

// info summarizes the room for the lobby's directory cache.
func (r *Room) info() Info {
	return Info{
		Code:           r.Code,
		HostID:         r.HostID,
		HostName:       r.memberName(r.HostID),
		Settings:       r.Settings,
		IsPublic:       r.IsPublic,
		PlayerCount:    len(r.Players),
		SpectatorCount: len(r.Spectators),
		GameStarted:    r.Started,
	}
}
