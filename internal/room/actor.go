// internal/room/actor.go
package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rps-arena/server/internal/game"
	"github.com/rps-arena/server/internal/models"
	"github.com/rps-arena/server/internal/protocol"
)

// delay between a round result and the next shot clock arming, so clients
// can show the reveal before the countdown restarts.
const preRoundDelay = 2 * time.Second

const (
	phaseIdle = iota
	phaseDelay
	phaseRound
)

// Actor owns one Room and processes its inbox strictly sequentially. All
// mutation of room state happens on the actor goroutine; the lobby and the
// connection handlers only ever post messages.
type Actor struct {
	room    *Room
	inbox   chan Msg
	notices chan<- Notice
	publish func(models.MatchSummary)
	log     *logrus.Logger

	done    chan struct{}
	stopped bool

	// Single timer per room. The epoch tags outstanding expiries so a
	// cancelled or superseded timer's firing is discarded on arrival.
	clock      *time.Timer
	clockEpoch uint64
	clockPhase int
}

// New builds the actor with its host already seated. Start must be called
// to begin processing; the roomCreated confirmation is the loop's first act.
func New(code string, host Member, settings protocol.RoomSettings, isPublic bool, notices chan<- Notice, publish func(models.MatchSummary), log *logrus.Logger) *Actor {
	a := &Actor{
		room:    newRoom(code, host, settings, isPublic),
		inbox:   make(chan Msg, 64),
		notices: notices,
		publish: publish,
		log:     log,
		done:    make(chan struct{}),
	}
	a.inbox <- announce{}
	return a
}

func (a *Actor) Code() string { return a.room.Code }

func (a *Actor) Start() { go a.run() }

// Post delivers a message to the actor without ever blocking the caller.
// A stopped actor discards the message; a full inbox drops it with a
// warning, so the lobby goroutine can never wedge on a busy room.
func (a *Actor) Post(m Msg) {
	select {
	case a.inbox <- m:
	case <-a.done:
	default:
		a.log.WithField("room", a.room.Code).Warn("room: inbox full, dropping message")
	}
}

func (a *Actor) run() {
	defer close(a.done)
	defer a.cancelClock()
	for {
		m := <-a.inbox
		a.handle(m)
		if a.stopped {
			return
		}
	}
}

func (a *Actor) handle(m Msg) {
	switch msg := m.(type) {
	case announce:
		a.handleAnnounce()
	case Join:
		a.handleJoin(msg)
	case AcceptInvite:
		a.handleAcceptInvite(msg)
	case Leave:
		a.handleLeave(msg)
	case GraceExpired:
		a.handleGraceExpired(msg)
	case Disconnected:
		a.handleDisconnected(msg)
	case Reconnected:
		a.handleReconnected(msg)
	case MakeMove:
		a.handleMakeMove(msg)
	case Ready:
		a.handleReady(msg)
	case Restart:
		a.handleRestart(msg)
	case ReturnToLobby:
		a.handleReturnToLobby(msg)
	case Forfeit:
		a.handleForfeit(msg)
	case UpdateSettings:
		a.handleUpdateSettings(msg)
	case clockFired:
		a.handleClockFired(msg)
	case Shutdown:
		a.stopped = true
	}
}

// --- outbound plumbing ---

// send never blocks the actor loop; a full client buffer drops the message.
func (a *Actor) send(out chan<- any, msg any) {
	if out == nil {
		return
	}
	select {
	case out <- msg:
	default:
		a.log.WithField("room", a.room.Code).Warn("room: dropping message to slow client")
	}
}

func (a *Actor) broadcast(msg any, exclude ...string) {
	for id, m := range a.room.members {
		skip := false
		for _, ex := range exclude {
			if id == ex {
				skip = true
				break
			}
		}
		if !skip {
			a.send(m.out, msg)
		}
	}
}

func (a *Actor) notify(added, removed []string, empty bool) {
	a.notices <- Notice{
		Code:    a.room.Code,
		Added:   added,
		Removed: removed,
		Empty:   empty,
		Info:    a.room.info(),
	}
}

// notifyRejected reports a refused admission so the lobby can release the
// seat claim it recorded when dispatching the join.
func (a *Actor) notifyRejected(id string) {
	a.notices <- Notice{Code: a.room.Code, Rejected: []string{id}, Info: a.room.info()}
}

// --- timer ---

func (a *Actor) cancelClock() {
	a.clockEpoch++
	a.clockPhase = phaseIdle
	if a.clock != nil {
		a.clock.Stop()
		a.clock = nil
	}
}

func (a *Actor) armTimer(d time.Duration, phase int) {
	a.cancelClock()
	a.clockPhase = phase
	epoch := a.clockEpoch
	a.clock = time.AfterFunc(d, func() {
		// The timer runs on its own goroutine, so a blocking send is fine
		// here and the expiry is never lost to a momentarily full inbox.
		select {
		case a.inbox <- clockFired{epoch: epoch}:
		case <-a.done:
		}
	})
}

// armShotClock starts the per-round countdown. A non-positive shot clock
// setting disables the countdown entirely; rounds then resolve only when
// both players have moved.
func (a *Actor) armShotClock() {
	secs := a.room.Settings.ShotClock
	if secs <= 0 {
		a.cancelClock()
		return
	}
	a.armTimer(time.Duration(secs)*time.Second, phaseRound)
	a.broadcast(protocol.ShotClockStarted{Type: "shotClockStarted", Seconds: secs})
}

func (a *Actor) armRoundDelay() {
	if a.room.Settings.ShotClock <= 0 {
		a.cancelClock()
		return
	}
	a.armTimer(preRoundDelay, phaseDelay)
}

func (a *Actor) handleClockFired(msg clockFired) {
	if msg.epoch != a.clockEpoch {
		return // stale expiry from a cancelled or replaced timer
	}
	switch a.clockPhase {
	case phaseDelay:
		a.armShotClock()
	case phaseRound:
		if !a.room.Started {
			a.cancelClock()
			return
		}
		for _, p := range a.room.Players {
			if _, moved := a.room.moves[p]; !moved {
				a.room.timedOut[p] = true
			}
		}
		a.resolveRound()
	}
}

// --- membership ---

func (a *Actor) handleAnnounce() {
	r := a.room
	if m, ok := r.members[r.HostID]; ok {
		a.send(m.out, protocol.RoomMessage{Type: "roomCreated", RoomSnapshot: r.Snapshot()})
	}
	a.notify([]string{r.HostID}, nil, false)
}

func (a *Actor) handleJoin(msg Join) {
	r := a.room
	if r.isMember(msg.Member.ID) {
		// Covers self-join-as-opponent too: the sole player of a room can
		// never be seated a second time.
		a.send(msg.Member.Out, protocol.Err("You are already in this room"))
		return
	}
	if msg.AsPlayer {
		if r.Started {
			a.send(msg.Member.Out, protocol.Err("Game has already started"))
			a.notifyRejected(msg.Member.ID)
			return
		}
		if len(r.Players) >= 2 {
			a.send(msg.Member.Out, protocol.Err("Room is full"))
			a.notifyRejected(msg.Member.ID)
			return
		}
		r.addPlayer(msg.Member)
	} else {
		r.addSpectator(msg.Member)
	}
	a.send(msg.Member.Out, protocol.RoomMessage{Type: "joinedRoom", RoomSnapshot: r.Snapshot()})
	a.broadcast(protocol.PlayerJoined{
		Type:         "playerJoined",
		PlayerID:     msg.Member.ID,
		Name:         r.memberName(msg.Member.ID),
		AsSpectator:  !msg.AsPlayer,
		RoomSnapshot: r.Snapshot(),
	}, msg.Member.ID)
	a.notify([]string{msg.Member.ID}, nil, false)
}

func (a *Actor) handleAcceptInvite(msg AcceptInvite) {
	r := a.room
	if _, ok := r.members[msg.Member.ID]; ok {
		a.send(msg.Member.Out, protocol.RoomMessage{Type: "joinedRoom", RoomSnapshot: r.Snapshot()})
		return
	}
	if len(r.Players) >= 2 || r.Started {
		a.send(msg.Member.Out, protocol.Err("Room is now full"))
		a.notifyRejected(msg.Member.ID)
		return
	}
	r.addPlayer(msg.Member)
	// An accepted invitation is a mutual commitment: both players are
	// implicitly ready and the game begins at once.
	for _, p := range r.Players {
		r.ready[p] = true
	}
	r.startGame()
	a.send(msg.Member.Out, protocol.RoomMessage{Type: "joinedRoom", RoomSnapshot: r.Snapshot()})
	a.broadcast(protocol.InvitationAccepted{
		Type:         "invitationAccepted",
		PlayerID:     msg.Member.ID,
		PlayerName:   r.memberName(msg.Member.ID),
		RoomSnapshot: r.Snapshot(),
	}, msg.Member.ID)
	a.broadcast(protocol.RoomMessage{Type: "gameStarted", RoomSnapshot: r.Snapshot()})
	a.armShotClock()
	a.notify([]string{msg.Member.ID}, nil, false)
}

func (a *Actor) handleLeave(msg Leave) {
	if !a.room.isMember(msg.SessionID) {
		return
	}
	a.departMember(msg.SessionID, true, false)
}

func (a *Actor) handleGraceExpired(msg GraceExpired) {
	r := a.room
	if !r.isMember(msg.SessionID) {
		return
	}
	if r.Started && r.isPlayer(msg.SessionID) {
		a.concludeForfeit(msg.SessionID)
	}
	a.departMember(msg.SessionID, false, true)
}

// departMember removes a session from the room and handles the fallout:
// host reassignment, structural game reset, dissolution when empty. The
// evicted flag marks removals the room decided on its own; the lobby
// releases its seat claim for those through the Removed notice, while a
// Leave the lobby dispatched has the claim settled at dispatch already.
func (a *Actor) departMember(id string, ack, evicted bool) {
	r := a.room
	name := r.memberName(id)
	var out chan<- any
	if m, ok := r.members[id]; ok {
		out = m.out
	}
	wasPlayer := r.isPlayer(id)
	r.removeMember(id)

	var removed []string
	if evicted {
		removed = []string{id}
	}
	if ack {
		a.send(out, protocol.LeftRoom{Type: "leftRoom"})
	}
	if r.empty() {
		a.notify(nil, removed, true)
		a.stopped = true
		return
	}
	if r.HostID == id {
		r.reassignHost()
	}
	if wasPlayer {
		// A player slot opening up invalidates any game in progress and
		// any concluded match's scoreboard.
		a.cancelClock()
		r.resetGame()
	}
	a.broadcast(protocol.PlayerLeft{
		Type:         "playerLeft",
		PlayerID:     id,
		Name:         name,
		RoomSnapshot: r.Snapshot(),
	})
	a.notify(nil, removed, false)
}

func (a *Actor) handleDisconnected(msg Disconnected) {
	r := a.room
	m, ok := r.members[msg.SessionID]
	if !ok {
		return
	}
	m.out = nil
	a.broadcast(protocol.PlayerPresence{
		Type:     "playerDisconnected",
		PlayerID: msg.SessionID,
		Name:     m.name,
	})
}

func (a *Actor) handleReconnected(msg Reconnected) {
	r := a.room
	m, ok := r.members[msg.Member.ID]
	if !ok {
		a.send(msg.Member.Out, protocol.Reconnected{
			Type:      "reconnected",
			PlayerID:  msg.Member.ID,
			SessionID: msg.Member.ID,
			Name:      msg.Member.Name,
			RoomGone:  true,
		})
		return
	}
	m.out = msg.Member.Out
	if msg.Member.Name != "" {
		m.name = msg.Member.Name
	}
	a.broadcast(protocol.PlayerPresence{
		Type:     "playerReconnected",
		PlayerID: msg.Member.ID,
		Name:     m.name,
	}, msg.Member.ID)
	snap := r.Snapshot()
	a.send(m.out, protocol.Reconnected{
		Type:           "reconnected",
		PlayerID:       msg.Member.ID,
		SessionID:      msg.Member.ID,
		Name:           m.name,
		RoomCode:       r.Code,
		GameInProgress: r.Started,
		RoomSnapshot:   &snap,
	})
}

// --- gameplay ---

func (a *Actor) errTo(id, message string) {
	if m, ok := a.room.members[id]; ok {
		a.send(m.out, protocol.Err(message))
	}
}

func (a *Actor) handleReady(msg Ready) {
	r := a.room
	if !r.isMember(msg.SessionID) {
		return
	}
	if !r.isPlayer(msg.SessionID) {
		a.errTo(msg.SessionID, "You are not a player in this room")
		return
	}
	if r.Started {
		a.errTo(msg.SessionID, "Game already in progress")
		return
	}
	r.ready[msg.SessionID] = true
	a.broadcast(protocol.PlayerReady{
		Type:         "playerReady",
		PlayerID:     msg.SessionID,
		Name:         r.memberName(msg.SessionID),
		RoomSnapshot: r.Snapshot(),
	})
	if r.allPlayersReady() {
		r.startGame()
		a.broadcast(protocol.RoomMessage{Type: "gameStarted", RoomSnapshot: r.Snapshot()})
		a.armShotClock()
		a.notify(nil, nil, false)
	}
}

func (a *Actor) handleMakeMove(msg MakeMove) {
	r := a.room
	if !r.isMember(msg.SessionID) {
		return
	}
	if !r.Started {
		a.errTo(msg.SessionID, "Game is not in progress")
		return
	}
	if !r.isPlayer(msg.SessionID) {
		a.errTo(msg.SessionID, "You are not a player in this room")
		return
	}
	if !msg.Move.Valid() {
		a.errTo(msg.SessionID, "Invalid move")
		return
	}
	if _, moved := r.moves[msg.SessionID]; moved {
		a.errTo(msg.SessionID, "You have already made a move this round")
		return
	}
	r.moves[msg.SessionID] = msg.Move
	a.ackMove(msg.SessionID)
	a.broadcast(protocol.PlayerMoved{
		Type:     "playerMoved",
		PlayerID: msg.SessionID,
		Name:     r.memberName(msg.SessionID),
	}, msg.SessionID)
	if r.allMovesIn() {
		a.resolveRound()
	}
}

func (a *Actor) ackMove(id string) {
	if m, ok := a.room.members[id]; ok {
		a.send(m.out, protocol.MoveReceived{Type: "moveReceived"})
	}
}

// resolveRound arbitrates the current round from committed moves and
// timeout marks, then either ends the match or schedules the next round.
func (a *Actor) resolveRound() {
	r := a.room
	a.cancelClock()
	p1, p2 := r.Players[0], r.Players[1]
	m1, ok1 := r.moves[p1]
	m2, ok2 := r.moves[p2]

	var result game.Outcome
	switch {
	case !ok1 && !ok2:
		result = game.OutcomeTie
	case !ok1:
		result = game.OutcomeSecond
	case !ok2:
		result = game.OutcomeFirst
	default:
		result = game.Resolve(m1, m2)
	}
	switch result {
	case game.OutcomeFirst:
		r.Scores[p1]++
	case game.OutcomeSecond:
		r.Scores[p2]++
	}

	rec := models.RoundRecord{Round: r.Round, Result: string(result)}
	if ok1 {
		s := string(m1)
		rec.Player1Move = &s
	}
	if ok2 {
		s := string(m2)
		rec.Player2Move = &s
	}
	r.history = append(r.history, rec)

	res := protocol.RoundResult{
		Type:    "roundResult",
		Round:   r.Round,
		Player1: protocol.PlayerRoundResult{ID: p1, Name: r.memberName(p1), Move: rec.Player1Move, TimedOut: !ok1},
		Player2: protocol.PlayerRoundResult{ID: p2, Name: r.memberName(p2), Move: rec.Player2Move, TimedOut: !ok2},
		Result:  string(result),
	}

	r.Round++
	r.moves = make(map[string]game.Move)
	r.timedOut = make(map[string]bool)

	var winner string
	if r.Scores[p1] >= r.Settings.WinsNeeded {
		winner = p1
	} else if r.Scores[p2] >= r.Settings.WinsNeeded {
		winner = p2
	}

	if winner == "" {
		res.RoomSnapshot = r.Snapshot()
		a.broadcast(res)
		a.armRoundDelay()
		return
	}

	r.MatchWinner = winner
	r.Started = false
	r.ready = make(map[string]bool)
	res.RoomSnapshot = r.Snapshot()
	a.broadcast(res)
	a.publish(a.buildSummary(winner, false))
	a.broadcast(protocol.MatchEnd{
		Type:         "matchEnd",
		Winner:       winner,
		WinnerName:   r.memberName(winner),
		RoomSnapshot: r.Snapshot(),
	})
	a.notify(nil, nil, false)
}

func (a *Actor) handleForfeit(msg Forfeit) {
	r := a.room
	if !r.isMember(msg.SessionID) {
		return
	}
	if !r.Started {
		a.errTo(msg.SessionID, "Game is not in progress")
		return
	}
	if !r.isPlayer(msg.SessionID) {
		a.errTo(msg.SessionID, "You are not a player in this room")
		return
	}
	a.concludeForfeit(msg.SessionID)
	a.departMember(msg.SessionID, true, true)
}

// concludeForfeit ends the game in favor of the player the forfeiter was
// facing and publishes the match summary. The forfeiter is still a member
// here so the broadcast reaches everyone.
func (a *Actor) concludeForfeit(forfeiter string) {
	r := a.room
	winner := r.otherPlayer(forfeiter)
	a.cancelClock()
	r.MatchWinner = winner
	r.Started = false
	r.ready = make(map[string]bool)
	a.publish(a.buildSummary(winner, true))
	a.broadcast(protocol.GameForfeit{
		Type:          "gameForfeit",
		ForfeiterID:   forfeiter,
		ForfeiterName: r.memberName(forfeiter),
		WinnerID:      winner,
		WinnerName:    r.memberName(winner),
		RoomSnapshot:  r.Snapshot(),
	})
}

func (a *Actor) handleRestart(msg Restart) {
	r := a.room
	if !r.isMember(msg.SessionID) {
		return
	}
	if !r.isPlayer(msg.SessionID) {
		a.errTo(msg.SessionID, "You are not a player in this room")
		return
	}
	if r.Started {
		a.errTo(msg.SessionID, "Game is still in progress")
		return
	}
	a.cancelClock()
	r.resetGame()
	a.broadcast(protocol.RoomMessage{Type: "matchReset", RoomSnapshot: r.Snapshot()})
	a.notify(nil, nil, false)
}

func (a *Actor) handleReturnToLobby(msg ReturnToLobby) {
	r := a.room
	if !r.isMember(msg.SessionID) {
		return
	}
	a.cancelClock()
	r.resetGame()
	a.broadcast(protocol.RoomMessage{Type: "returnedToLobby", RoomSnapshot: r.Snapshot()})
	a.notify(nil, nil, false)
}

func (a *Actor) handleUpdateSettings(msg UpdateSettings) {
	r := a.room
	if !r.isMember(msg.SessionID) {
		return
	}
	if r.HostID != msg.SessionID {
		a.errTo(msg.SessionID, "Only the host can update settings")
		return
	}
	if r.Started {
		a.errTo(msg.SessionID, "Cannot change settings during a game")
		return
	}
	if msg.BestOf > 0 {
		r.Settings.BestOf = msg.BestOf
		r.Settings.WinsNeeded = game.WinsNeeded(msg.BestOf)
	}
	if msg.ShotClock >= 0 {
		r.Settings.ShotClock = msg.ShotClock
	}
	a.broadcast(protocol.RoomSettingsUpdated{
		Type:         "roomSettingsUpdated",
		Settings:     r.Settings,
		RoomSnapshot: r.Snapshot(),
	})
	a.notify(nil, nil, false)
}

// --- persistence handoff ---

func (a *Actor) buildSummary(winnerID string, forfeit bool) models.MatchSummary {
	r := a.room
	sum := models.MatchSummary{
		MatchID:  uuid.New(),
		RoomCode: r.Code,
		Rounds:   append([]models.RoundRecord(nil), r.history...),
		Forfeit:  forfeit,
		EndedAt:  time.Now().Unix(),
	}
	if len(r.Players) > 0 {
		sum.Player1 = a.matchPlayer(r.Players[0])
	}
	if len(r.Players) > 1 {
		sum.Player2 = a.matchPlayer(r.Players[1])
	}
	if winnerID != "" {
		id := a.parseSessionID(winnerID)
		sum.WinnerID = &id
	}
	return sum
}

func (a *Actor) matchPlayer(id string) models.MatchPlayer {
	return models.MatchPlayer{
		ID:    a.parseSessionID(id),
		Name:  a.room.memberName(id),
		Score: a.room.Scores[id],
	}
}

func (a *Actor) parseSessionID(id string) uuid.UUID {
	u, err := uuid.Parse(id)
	if err != nil {
		a.log.WithField("session", id).Warn("room: non-uuid session id in match summary")
		return uuid.Nil
	}
	return u
}
