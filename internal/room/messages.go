// internal/room/messages.go
package room

import (
	"github.com/rps-arena/server/internal/game"
	"github.com/rps-arena/server/internal/protocol"
)

// Member carries everything the room needs to admit a session: identity,
// display name, and the connection's outbound channel.
type Member struct {
	ID   string
	Name string
	Out  chan<- any
}

// Msg is a message posted to a room actor's inbox.
type Msg interface{ isRoomMsg() }

// Join admits a session as a player (AsPlayer) or spectator. A join by an
// existing member rebinds its connection and resyncs state.
type Join struct {
	Member   Member
	AsPlayer bool
}

// AcceptInvite admits an invited session as a player and starts the game
// immediately, both players implicitly ready.
type AcceptInvite struct {
	Member Member
}

// Leave is a deliberate departure; the leaver gets a leftRoom ack.
type Leave struct {
	SessionID string
}

// GraceExpired removes a member whose reconnect window lapsed. Mid-game it
// resolves as a forfeit in favor of the remaining player.
type GraceExpired struct {
	SessionID string
}

// Disconnected marks a member's connection as dropped without removing it.
type Disconnected struct {
	SessionID string
}

// Reconnected rebinds a resumed session's connection and resyncs it.
type Reconnected struct {
	Member Member
}

// MakeMove records a player's committed move for the current round.
type MakeMove struct {
	SessionID string
	Move      game.Move
}

// Ready signals a player is ready to begin the game.
type Ready struct {
	SessionID string
}

// Restart resets a concluded match back to the ready-check state.
type Restart struct {
	SessionID string
}

// ReturnToLobby resets the room to its pre-game state at any point.
type ReturnToLobby struct {
	SessionID string
}

// Forfeit concedes the current game and removes the forfeiter.
type Forfeit struct {
	SessionID string
}

// UpdateSettings changes the match parameters. Host-only, pre-game.
type UpdateSettings struct {
	SessionID string
	BestOf    int
	ShotClock int
}

// Shutdown stops the actor goroutine.
type Shutdown struct{}

// announce is self-posted by Start so the host's roomCreated confirmation
// goes out as the first action of the actor loop.
type announce struct{}

// clockFired is self-posted by the timer goroutine. Stale epochs are
// discarded by the loop.
type clockFired struct {
	epoch uint64
}

func (Join) isRoomMsg()           {}
func (AcceptInvite) isRoomMsg()   {}
func (Leave) isRoomMsg()          {}
func (GraceExpired) isRoomMsg()   {}
func (Disconnected) isRoomMsg()   {}
func (Reconnected) isRoomMsg()    {}
func (MakeMove) isRoomMsg()       {}
func (Ready) isRoomMsg()          {}
func (Restart) isRoomMsg()        {}
func (ReturnToLobby) isRoomMsg()  {}
func (Forfeit) isRoomMsg()        {}
func (UpdateSettings) isRoomMsg() {}
func (Shutdown) isRoomMsg()       {}
func (announce) isRoomMsg()       {}
func (clockFired) isRoomMsg()     {}

// Info is the lobby-facing room summary, refreshed with every Notice.
type Info struct {
	Code           string
	HostID         string
	HostName       string
	Settings       protocol.RoomSettings
	IsPublic       bool
	PlayerCount    int
	SpectatorCount int
	GameStarted    bool
}

// Notice is the room→lobby feedback channel payload. Added lists admitted
// sessions. Removed lists sessions the room removed on its own authority
// (forfeit, grace expiry); departures the lobby itself dispatched are not
// listed, since the lobby settles those when it posts the Leave. Rejected
// lists sessions whose admission was refused. Empty means the room dissolved
// and the actor has stopped.
type Notice struct {
	Code     string
	Added    []string
	Removed  []string
	Rejected []string
	Empty    bool
	Info     Info
}
