// Package lobby hosts the lobby actor: the single goroutine that owns the
// session registry, the room directory, the presence roster and all pending
// invitations. Room-scoped commands are forwarded to the owning room actor;
// everything else is answered here.
package lobby

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rps-arena/server/internal/game"
	"github.com/rps-arena/server/internal/models"
	"github.com/rps-arena/server/internal/protocol"
	"github.com/rps-arena/server/internal/room"
)

const (
	maxNameLength = 20

	defaultBestOf    = 7
	defaultShotClock = 30

	sweepInterval = 15 * time.Second
)

// Client is one live websocket connection. The handler owns the conn and
// the pumps; the lobby owns the session binding.
type Client struct {
	Out        chan any
	RemoteAddr string

	// sessionID is only read and written on the lobby goroutine.
	sessionID string
}

func NewClient(remoteAddr string) *Client {
	return &Client{Out: make(chan any, 64), RemoteAddr: remoteAddr}
}

type lobbyMsg interface{ isLobbyMsg() }

type connectMsg struct{ client *Client }
type disconnectMsg struct{ client *Client }
type inboundMsg struct {
	client *Client
	msg    protocol.ClientMessage
}

func (connectMsg) isLobbyMsg()    {}
func (disconnectMsg) isLobbyMsg() {}
func (inboundMsg) isLobbyMsg()    {}

// invitation is one pending invite, keyed by target session in
// Lobby.invites. At most one per target at a time.
type invitation struct {
	RoomCode string
	FromID   string
	At       time.Time
}

// Lobby is the actor state. Everything below inbox is owned by Run's
// goroutine.
type Lobby struct {
	inbox   chan lobbyMsg
	notices chan room.Notice
	publish func(models.MatchSummary)
	log     *logrus.Logger

	reg      *Registry
	clients  map[string]*Client
	rooms    map[string]*room.Actor
	roomInfo map[string]room.Info
	invites  map[string]invitation
}

func New(log *logrus.Logger, publish func(models.MatchSummary), grace time.Duration) *Lobby {
	return &Lobby{
		inbox:    make(chan lobbyMsg, 256),
		notices:  make(chan room.Notice, 256),
		publish:  publish,
		log:      log,
		reg:      NewRegistry(grace),
		clients:  make(map[string]*Client),
		rooms:    make(map[string]*room.Actor),
		roomInfo: make(map[string]room.Info),
		invites:  make(map[string]invitation),
	}
}

// Connect registers a new connection with the lobby actor.
func (l *Lobby) Connect(c *Client) { l.inbox <- connectMsg{client: c} }

// Disconnect reports a dropped connection.
func (l *Lobby) Disconnect(c *Client) { l.inbox <- disconnectMsg{client: c} }

// Handle forwards a decoded client message.
func (l *Lobby) Handle(c *Client, msg protocol.ClientMessage) {
	l.inbox <- inboundMsg{client: c, msg: msg}
}

// Run processes the lobby inbox until ctx is cancelled.
func (l *Lobby) Run(ctx context.Context) {
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			for _, act := range l.rooms {
				act.Post(room.Shutdown{})
			}
			return
		case m := <-l.inbox:
			l.handle(m)
		case n := <-l.notices:
			l.handleNotice(n)
		case <-sweep.C:
			l.sweepSessions()
		}
	}
}

func (l *Lobby) handle(m lobbyMsg) {
	switch msg := m.(type) {
	case connectMsg:
		l.handleConnect(msg.client)
	case disconnectMsg:
		l.handleDisconnect(msg.client)
	case inboundMsg:
		l.dispatch(msg.client, msg.msg)
	}
}

func (l *Lobby) dispatch(c *Client, msg protocol.ClientMessage) {
	switch msg.Type {
	case "setName":
		l.handleSetName(c, msg)
	case "reconnect":
		l.handleReconnect(c, msg)
	case "createRoom":
		l.handleCreateRoom(c, msg)
	case "joinRoom":
		l.handleJoinRoom(c, msg)
	case "leaveRoom":
		l.handleLeaveRoom(c)
	case "readyToPlay":
		l.forwardToRoom(c, room.Ready{SessionID: c.sessionID})
	case "makeMove":
		l.handleMakeMove(c, msg)
	case "restartMatch":
		l.forwardToRoom(c, room.Restart{SessionID: c.sessionID})
	case "returnToLobby":
		l.forwardToRoom(c, room.ReturnToLobby{SessionID: c.sessionID})
	case "forfeitGame":
		l.forwardToRoom(c, room.Forfeit{SessionID: c.sessionID})
	case "updateRoomSettings":
		l.forwardToRoom(c, room.UpdateSettings{SessionID: c.sessionID, BestOf: msg.BestOf, ShotClock: msg.ShotClock})
	case "invitePlayer":
		l.handleInvitePlayer(c, msg)
	case "acceptInvitation":
		l.handleAcceptInvitation(c, msg)
	case "declineInvitation":
		l.handleDeclineInvitation(c, msg)
	case "cancelInvitation":
		l.handleCancelInvitation(c, msg)
	case "getOnlineUsers":
		users := l.onlineUsers()
		l.send(c, protocol.OnlineUsers{Type: "onlineUsers", Users: users, Count: len(users)})
	case "getPublicRooms":
		l.send(c, protocol.PublicRooms{Type: "publicRooms", Rooms: l.publicRooms()})
	case "getNewSession":
		l.handleNewSession(c)
	default:
		l.send(c, protocol.Err("Unknown message type"))
	}
}

// --- connection lifecycle ---

func (l *Lobby) handleConnect(c *Client) {
	s := l.reg.Open()
	c.sessionID = s.ID
	l.clients[s.ID] = c
	l.send(c, protocol.Connected{Type: "connected", PlayerID: s.ID, SessionID: s.ID})
	l.broadcastPresence()
}

func (l *Lobby) handleDisconnect(c *Client) {
	sid := c.sessionID
	if l.clients[sid] != c {
		return // superseded by a reconnect takeover
	}
	delete(l.clients, sid)
	s := l.reg.Get(sid)
	if s == nil {
		return
	}
	l.reg.MarkDisconnected(sid)
	if s.RoomCode != "" {
		if act := l.rooms[s.RoomCode]; act != nil {
			act.Post(room.Disconnected{SessionID: sid})
		}
	}
	// A target that drops can no longer see its invite.
	delete(l.invites, sid)
	l.broadcastPresence()
	l.broadcastRoomList()
}

func (l *Lobby) handleReconnect(c *Client, msg protocol.ClientMessage) {
	old := msg.SessionID
	if old == "" || old == c.sessionID {
		l.send(c, protocol.ReconnectFailed{Type: "reconnectFailed", Reason: "Session not found"})
		return
	}
	if prev, ok := l.clients[old]; ok {
		// The session is still live elsewhere; the newest connection wins.
		l.send(prev, protocol.Err("Session taken over by another connection"))
		prev.sessionID = ""
		delete(l.clients, old)
	}
	s, err := l.reg.Resume(old)
	if err != nil {
		reason := "Session not found"
		if err == ErrSessionExpired {
			reason = "Session expired"
		}
		l.send(c, protocol.ReconnectFailed{Type: "reconnectFailed", Reason: reason})
		return
	}
	// Retire the throwaway session this connection got on connect.
	l.reg.Delete(c.sessionID)
	delete(l.clients, c.sessionID)
	c.sessionID = old
	l.clients[old] = c

	if s.RoomCode != "" {
		if act := l.rooms[s.RoomCode]; act != nil {
			act.Post(room.Reconnected{Member: room.Member{ID: old, Name: s.Name, Out: c.Out}})
		} else {
			s.RoomCode = ""
			l.send(c, protocol.Reconnected{
				Type:      "reconnected",
				PlayerID:  old,
				SessionID: old,
				Name:      s.Name,
				RoomGone:  true,
			})
		}
	} else {
		l.send(c, protocol.Reconnected{Type: "reconnected", PlayerID: old, SessionID: old, Name: s.Name})
	}
	l.broadcastPresence()
}

func (l *Lobby) handleNewSession(c *Client) {
	old := c.sessionID
	if s := l.reg.Get(old); s != nil && s.RoomCode != "" {
		if act := l.rooms[s.RoomCode]; act != nil {
			act.Post(room.Leave{SessionID: old})
		}
	}
	l.reg.Delete(old)
	delete(l.clients, old)
	delete(l.invites, old)
	fresh := l.reg.Open()
	c.sessionID = fresh.ID
	l.clients[fresh.ID] = c
	l.send(c, protocol.NewSession{Type: "newSession", SessionID: fresh.ID})
	l.broadcastPresence()
}

// --- lobby commands ---

func (l *Lobby) handleSetName(c *Client, msg protocol.ClientMessage) {
	name := strings.TrimSpace(msg.Name)
	if name == "" || len(name) > maxNameLength {
		l.send(c, protocol.Err("Invalid name"))
		return
	}
	s := l.reg.Get(c.sessionID)
	if s == nil {
		return
	}
	s.Name = name
	l.send(c, protocol.NameSet{Type: "nameSet", Name: name})
	l.broadcastPresence()
}

func (l *Lobby) handleCreateRoom(c *Client, msg protocol.ClientMessage) {
	s := l.reg.Get(c.sessionID)
	if s == nil {
		return
	}
	if s.RoomCode != "" {
		l.send(c, protocol.Err("You are already in a room"))
		return
	}
	bestOf := msg.BestOf
	if bestOf <= 0 {
		bestOf = defaultBestOf
	}
	shotClock := msg.ShotClock
	if shotClock <= 0 {
		shotClock = defaultShotClock
	}
	winsNeeded := msg.WinsNeeded
	if winsNeeded <= 0 {
		winsNeeded = game.WinsNeeded(bestOf)
	}
	settings := protocol.RoomSettings{WinsNeeded: winsNeeded, ShotClock: shotClock, BestOf: bestOf}

	code := game.NewRoomCode()
	for l.rooms[code] != nil {
		code = game.NewRoomCode()
	}
	host := room.Member{ID: s.ID, Name: s.Name, Out: c.Out}
	act := room.New(code, host, settings, msg.IsPublic, l.notices, l.publish, l.log)
	l.rooms[code] = act
	l.roomInfo[code] = room.Info{
		Code:        code,
		HostID:      s.ID,
		HostName:    s.Name,
		Settings:    settings,
		IsPublic:    msg.IsPublic,
		PlayerCount: 1,
	}
	s.RoomCode = code
	act.Start()

	l.log.WithFields(logrus.Fields{"room": code, "host": s.ID, "public": msg.IsPublic}).Info("lobby: room created")
	l.broadcastPresence()
	if msg.IsPublic {
		l.broadcastRoomList()
	}
}

func (l *Lobby) handleJoinRoom(c *Client, msg protocol.ClientMessage) {
	s := l.reg.Get(c.sessionID)
	if s == nil {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(msg.RoomCode))
	act := l.rooms[code]
	if act == nil {
		l.send(c, protocol.Err("Room not found"))
		return
	}
	if s.RoomCode == code {
		l.send(c, protocol.Err("You are already in this room"))
		return
	}
	if s.RoomCode != "" {
		if old := l.rooms[s.RoomCode]; old != nil {
			old.Post(room.Leave{SessionID: s.ID})
		}
	}
	// The seat is claimed here, on the single writer, so a burst of joins
	// cannot land one session in two rooms. A refused admission comes back
	// as a Rejected notice, which releases the claim.
	s.RoomCode = code
	act.Post(room.Join{Member: room.Member{ID: s.ID, Name: s.Name, Out: c.Out}, AsPlayer: msg.AsPlayer})
}

// handleLeaveRoom releases the seat claim immediately, so a leave followed
// by a create or join in the same breath never trips over a stale room code.
// The room confirms the departure on its own schedule.
func (l *Lobby) handleLeaveRoom(c *Client) {
	s := l.reg.Get(c.sessionID)
	if s == nil || s.RoomCode == "" {
		l.send(c, protocol.Err("You are not in a room"))
		return
	}
	if act := l.rooms[s.RoomCode]; act != nil {
		act.Post(room.Leave{SessionID: s.ID})
	}
	s.RoomCode = ""
	l.broadcastPresence()
	l.broadcastRoomList()
}

func (l *Lobby) handleMakeMove(c *Client, msg protocol.ClientMessage) {
	if !game.Move(msg.Move).Valid() {
		l.send(c, protocol.Err("Invalid move"))
		return
	}
	l.forwardToRoom(c, room.MakeMove{SessionID: c.sessionID, Move: game.Move(msg.Move)})
}

// forwardToRoom routes a room-scoped command to the sender's current room.
func (l *Lobby) forwardToRoom(c *Client, m room.Msg) {
	s := l.reg.Get(c.sessionID)
	if s == nil || s.RoomCode == "" {
		l.send(c, protocol.Err("You are not in a room"))
		return
	}
	act := l.rooms[s.RoomCode]
	if act == nil {
		s.RoomCode = ""
		l.send(c, protocol.Err("Room not found"))
		return
	}
	act.Post(m)
}

// --- invitations ---

func (l *Lobby) handleInvitePlayer(c *Client, msg protocol.ClientMessage) {
	s := l.reg.Get(c.sessionID)
	if s == nil {
		return
	}
	if msg.TargetID == s.ID {
		l.send(c, protocol.Err("You cannot invite yourself"))
		return
	}
	target, online := l.clients[msg.TargetID]
	if !online {
		l.send(c, protocol.Err("Player not found"))
		return
	}
	ts := l.reg.Get(msg.TargetID)
	if ts == nil {
		l.send(c, protocol.Err("Player not found"))
		return
	}
	if ts.RoomCode != "" {
		if info, ok := l.roomInfo[ts.RoomCode]; ok && info.GameStarted {
			l.send(c, protocol.Err("Player is in an active game"))
			return
		}
	}
	if _, pending := l.invites[msg.TargetID]; pending {
		l.send(c, protocol.Err("Player already has a pending invitation"))
		return
	}
	if s.RoomCode == "" {
		l.send(c, protocol.Err("You must be in a room to invite players"))
		return
	}
	info, ok := l.roomInfo[s.RoomCode]
	if !ok {
		l.send(c, protocol.Err("Room not found"))
		return
	}
	if info.HostID != s.ID {
		l.send(c, protocol.Err("Only the host can invite players"))
		return
	}
	if info.PlayerCount >= 2 || info.GameStarted {
		l.send(c, protocol.Err("Room is full"))
		return
	}

	l.invites[msg.TargetID] = invitation{RoomCode: s.RoomCode, FromID: s.ID, At: time.Now()}
	l.send(c, protocol.InvitationSent{Type: "invitationSent", TargetID: msg.TargetID, TargetName: ts.Name})
	l.send(target, protocol.InvitationReceived{
		Type:     "invitationReceived",
		FromID:   s.ID,
		FromName: s.Name,
		RoomCode: s.RoomCode,
		Settings: info.Settings,
	})
	l.broadcastPresence()
	l.broadcastRoomList()
}

func (l *Lobby) handleAcceptInvitation(c *Client, msg protocol.ClientMessage) {
	s := l.reg.Get(c.sessionID)
	if s == nil {
		return
	}
	inv, pending := l.invites[s.ID]
	act := l.rooms[msg.RoomCode]
	if act == nil {
		if pending && inv.RoomCode == msg.RoomCode {
			delete(l.invites, s.ID)
		}
		l.send(c, protocol.Err("Room no longer exists"))
		return
	}
	if !pending || inv.RoomCode != msg.RoomCode {
		l.send(c, protocol.Err("No pending invitation found"))
		return
	}
	delete(l.invites, s.ID)
	if s.RoomCode != "" && s.RoomCode != msg.RoomCode {
		if old := l.rooms[s.RoomCode]; old != nil {
			old.Post(room.Leave{SessionID: s.ID})
		}
	}
	s.RoomCode = msg.RoomCode
	act.Post(room.AcceptInvite{Member: room.Member{ID: s.ID, Name: s.Name, Out: c.Out}})
	l.broadcastPresence()
	l.broadcastRoomList()
}

// Declining is idempotent: a stale or mismatched decline is a silent no-op.
func (l *Lobby) handleDeclineInvitation(c *Client, msg protocol.ClientMessage) {
	s := l.reg.Get(c.sessionID)
	if s == nil {
		return
	}
	inv, pending := l.invites[s.ID]
	if !pending || (msg.RoomCode != "" && inv.RoomCode != msg.RoomCode) {
		return
	}
	delete(l.invites, s.ID)
	if inviter, ok := l.clients[inv.FromID]; ok {
		l.send(inviter, protocol.InvitationDeclined{Type: "invitationDeclined", TargetID: s.ID, TargetName: s.Name})
	}
	l.broadcastPresence()
	l.broadcastRoomList()
}

func (l *Lobby) handleCancelInvitation(c *Client, msg protocol.ClientMessage) {
	s := l.reg.Get(c.sessionID)
	if s == nil || s.RoomCode == "" {
		return
	}
	inv, pending := l.invites[msg.TargetID]
	if !pending || inv.RoomCode != s.RoomCode || inv.FromID != s.ID {
		return
	}
	delete(l.invites, msg.TargetID)
	if target, ok := l.clients[msg.TargetID]; ok {
		l.send(target, protocol.InvitationCancelled{
			Type:     "invitationCancelled",
			FromID:   s.ID,
			FromName: s.Name,
			RoomCode: inv.RoomCode,
		})
	}
	l.broadcastPresence()
	l.broadcastRoomList()
}

// --- room notices ---

func (l *Lobby) handleNotice(n room.Notice) {
	// Seat claims are recorded synchronously when commands are dispatched,
	// so Added is informational here. Removed and Rejected release a claim,
	// and only while the session still points at this room; a late notice
	// from an old room never clobbers a newer claim.
	for _, id := range n.Removed {
		if s := l.reg.Get(id); s != nil && s.RoomCode == n.Code {
			s.RoomCode = ""
		}
	}
	for _, id := range n.Rejected {
		if s := l.reg.Get(id); s != nil && s.RoomCode == n.Code {
			s.RoomCode = ""
		}
	}
	if n.Empty {
		delete(l.rooms, n.Code)
		delete(l.roomInfo, n.Code)
		for target, inv := range l.invites {
			if inv.RoomCode == n.Code {
				delete(l.invites, target)
			}
		}
		l.log.WithField("room", n.Code).Info("lobby: room dissolved")
	} else {
		l.roomInfo[n.Code] = n.Info
	}
	l.broadcastPresence()
	l.broadcastRoomList()
}

// --- grace sweep ---

func (l *Lobby) sweepSessions() {
	expired := l.reg.Sweep()
	if len(expired) == 0 {
		return
	}
	for _, s := range expired {
		l.log.WithFields(logrus.Fields{"session": s.ID, "room": s.RoomCode}).Info("lobby: session grace expired")
		if s.RoomCode != "" {
			if act := l.rooms[s.RoomCode]; act != nil {
				act.Post(room.GraceExpired{SessionID: s.ID})
			}
		}
		delete(l.invites, s.ID)
	}
	l.broadcastPresence()
	l.broadcastRoomList()
}

// --- roster and directory views ---

func (l *Lobby) onlineUsers() []protocol.OnlineUser {
	users := make([]protocol.OnlineUser, 0, len(l.clients))
	for sid := range l.clients {
		s := l.reg.Get(sid)
		if s == nil || s.Name == "" {
			continue
		}
		inGame := false
		if s.RoomCode != "" {
			if info, ok := l.roomInfo[s.RoomCode]; ok {
				inGame = info.GameStarted
			}
		}
		users = append(users, protocol.OnlineUser{
			ID:                sid,
			Name:              s.Name,
			InGame:            inGame,
			RoomCode:          s.RoomCode,
			PendingInvitation: l.invites[sid].RoomCode,
		})
	}
	return users
}

func (l *Lobby) publicRooms() []protocol.PublicRoomInfo {
	rooms := make([]protocol.PublicRoomInfo, 0)
	pending := make(map[string]bool, len(l.invites))
	for _, inv := range l.invites {
		pending[inv.RoomCode] = true
	}
	for code, info := range l.roomInfo {
		if !info.IsPublic {
			continue
		}
		rooms = append(rooms, protocol.PublicRoomInfo{
			RoomCode:              code,
			HostName:              info.HostName,
			Settings:              info.Settings,
			PlayerCount:           info.PlayerCount,
			SpectatorCount:        info.SpectatorCount,
			HasPendingInvitations: pending[code],
		})
	}
	return rooms
}

// broadcastPresence pushes the roster to every connected client that is not
// inside a room; in-room clients get room-scoped traffic only.
func (l *Lobby) broadcastPresence() {
	users := l.onlineUsers()
	msg := protocol.OnlineUsers{Type: "onlineUsers", Users: users, Count: len(users)}
	l.broadcastToIdle(msg)
}

func (l *Lobby) broadcastRoomList() {
	l.broadcastToIdle(protocol.PublicRooms{Type: "roomListUpdated", Rooms: l.publicRooms()})
}

func (l *Lobby) broadcastToIdle(msg any) {
	for sid, c := range l.clients {
		if s := l.reg.Get(sid); s != nil && s.RoomCode == "" {
			l.send(c, msg)
		}
	}
}

func (l *Lobby) send(c *Client, msg any) {
	select {
	case c.Out <- msg:
	default:
		l.log.WithField("remote", c.RemoteAddr).Warn("lobby: dropping message to slow client")
	}
}
