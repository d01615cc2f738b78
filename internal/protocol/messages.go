// Package protocol defines the JSON wire messages exchanged over the
// websocket. Every message carries a "type" discriminator; messages that
// describe room state embed a full RoomSnapshot so clients never have to
// diff partial updates.
package protocol

// ClientMessage is the envelope for every client→server message. Only the
// fields relevant to the given Type are populated.
type ClientMessage struct {
	Type string `json:"type"`

	// setName
	Name string `json:"name,omitempty"`

	// reconnect
	SessionID string `json:"sessionId,omitempty"`

	// createRoom
	IsPublic   bool `json:"isPublic,omitempty"`
	WinsNeeded int  `json:"winsNeeded,omitempty"`
	ShotClock  int  `json:"shotClock,omitempty"`
	BestOf     int  `json:"bestOf,omitempty"`

	// joinRoom / acceptInvitation / declineInvitation
	RoomCode string `json:"roomCode,omitempty"`
	AsPlayer bool   `json:"asPlayer,omitempty"`
	FromID   string `json:"fromId,omitempty"`

	// invitePlayer / cancelInvitation
	TargetID string `json:"targetId,omitempty"`

	// makeMove
	Move string `json:"move,omitempty"`
}

// RoomSettings are the host-chosen match parameters.
type RoomSettings struct {
	WinsNeeded int `json:"winsNeeded"`
	ShotClock  int `json:"shotClock"`
	BestOf     int `json:"bestOf"`
}

// PlayerInfo pairs a session id with its display name.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomSnapshot is the full observable state of a room. Embedded (flattened)
// into every room-state-bearing server message.
type RoomSnapshot struct {
	RoomCode     string         `json:"roomCode"`
	HostID       string         `json:"hostId"`
	Players      []PlayerInfo   `json:"players"`
	Spectators   []PlayerInfo   `json:"spectators"`
	Settings     RoomSettings   `json:"settings"`
	CurrentRound int            `json:"currentRound"`
	GameStarted  bool           `json:"gameStarted"`
	MatchWinner  *string        `json:"matchWinner"`
	Scores       map[string]int `json:"scores"`
	ReadyPlayers []string       `json:"readyPlayers"`
}

// OnlineUser is one entry of the lobby presence list.
type OnlineUser struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	InGame            bool   `json:"inGame"`
	RoomCode          string `json:"roomCode,omitempty"`
	PendingInvitation string `json:"pendingInvitation,omitempty"`
}

// PublicRoomInfo is one entry of the public room listing.
type PublicRoomInfo struct {
	RoomCode              string       `json:"roomCode"`
	HostName              string       `json:"hostName"`
	Settings              RoomSettings `json:"settings"`
	PlayerCount           int          `json:"playerCount"`
	SpectatorCount        int          `json:"spectatorCount"`
	HasPendingInvitations bool         `json:"hasPendingInvitations"`
}

// PlayerRoundResult reveals one player's play for a resolved round.
// Move is nil when the player timed out on the shot clock.
type PlayerRoundResult struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Move     *string `json:"move"`
	TimedOut bool    `json:"timedOut,omitempty"`
}

// --- server→client messages ---

type Connected struct {
	Type      string `json:"type"` // "connected"
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
}

type NameSet struct {
	Type string `json:"type"` // "nameSet"
	Name string `json:"name"`
}

type OnlineUsers struct {
	Type  string       `json:"type"` // "onlineUsers"
	Users []OnlineUser `json:"users"`
	Count int          `json:"count"`
}

type PublicRooms struct {
	Type  string           `json:"type"` // "publicRooms" or "roomListUpdated"
	Rooms []PublicRoomInfo `json:"rooms"`
}

type NewSession struct {
	Type      string `json:"type"` // "newSession"
	SessionID string `json:"sessionId"`
}

type Reconnected struct {
	Type          string `json:"type"` // "reconnected"
	PlayerID      string `json:"playerId"`
	SessionID     string `json:"sessionId"`
	Name          string `json:"name"`
	RoomCode      string `json:"roomCode,omitempty"`
	RoomGone      bool   `json:"roomGone,omitempty"`
	GameInProgress bool  `json:"gameInProgress,omitempty"`
	*RoomSnapshot
}

type ReconnectFailed struct {
	Type   string `json:"type"` // "reconnectFailed"
	Reason string `json:"reason"`
}

// RoomMessage covers the snapshot-only messages: "roomCreated",
// "joinedRoom", "gameStarted", "matchReset", "returnedToLobby".
type RoomMessage struct {
	Type string `json:"type"`
	RoomSnapshot
}

type PlayerJoined struct {
	Type        string `json:"type"` // "playerJoined"
	PlayerID    string `json:"playerId"`
	Name        string `json:"name"`
	AsSpectator bool   `json:"asSpectator"`
	RoomSnapshot
}

type PlayerLeft struct {
	Type     string `json:"type"` // "playerLeft"
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	RoomSnapshot
}

type PlayerPresence struct {
	Type     string `json:"type"` // "playerDisconnected" / "playerReconnected"
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type PlayerReady struct {
	Type     string `json:"type"` // "playerReady"
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	RoomSnapshot
}

type ShotClockStarted struct {
	Type    string `json:"type"` // "shotClockStarted"
	Seconds int    `json:"seconds"`
}

type MoveReceived struct {
	Type string `json:"type"` // "moveReceived"
}

type PlayerMoved struct {
	Type     string `json:"type"` // "playerMoved"
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type RoundResult struct {
	Type    string            `json:"type"` // "roundResult"
	Round   int               `json:"round"`
	Player1 PlayerRoundResult `json:"player1"`
	Player2 PlayerRoundResult `json:"player2"`
	Result  string            `json:"result"`
	RoomSnapshot
}

type MatchEnd struct {
	Type       string `json:"type"` // "matchEnd"
	Winner     string `json:"winner"`
	WinnerName string `json:"winnerName"`
	RoomSnapshot
}

type GameForfeit struct {
	Type          string `json:"type"` // "gameForfeit"
	ForfeiterID   string `json:"forfeiterId"`
	ForfeiterName string `json:"forfeiterName"`
	WinnerID      string `json:"winnerId"`
	WinnerName    string `json:"winnerName"`
	RoomSnapshot
}

type RoomSettingsUpdated struct {
	Type     string       `json:"type"` // "roomSettingsUpdated"
	Settings RoomSettings `json:"settings"`
	RoomSnapshot
}

type LeftRoom struct {
	Type string `json:"type"` // "leftRoom"
}

type InvitationSent struct {
	Type       string `json:"type"` // "invitationSent"
	TargetID   string `json:"targetId"`
	TargetName string `json:"targetName"`
}

type InvitationReceived struct {
	Type     string       `json:"type"` // "invitationReceived"
	FromID   string       `json:"fromId"`
	FromName string       `json:"fromName"`
	RoomCode string       `json:"roomCode"`
	Settings RoomSettings `json:"settings"`
}

type InvitationAccepted struct {
	Type       string `json:"type"` // "invitationAccepted"
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	RoomSnapshot
}

type InvitationDeclined struct {
	Type       string `json:"type"` // "invitationDeclined"
	TargetID   string `json:"targetId"`
	TargetName string `json:"targetName"`
}

type InvitationCancelled struct {
	Type     string `json:"type"` // "invitationCancelled"
	FromID   string `json:"fromId"`
	FromName string `json:"fromName"`
	RoomCode string `json:"roomCode"`
}

type Error struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// Err builds an error message for the originating connection.
func Err(message string) Error {
	return Error{Type: "error", Message: message}
}
