package lobby

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rps-arena/server/internal/models"
	"github.com/rps-arena/server/internal/protocol"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func startLobby(t *testing.T) *Lobby {
	t.Helper()
	l := New(testLogger(), func(models.MatchSummary) {}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)
	return l
}

// expect drains c's channel until a message of type T arrives.
func expect[T any](t *testing.T, c *Client) T {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case raw := <-c.Out:
			if v, ok := raw.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
		}
	}
}

func expectError(t *testing.T, c *Client, message string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case raw := <-c.Out:
			if e, ok := raw.(protocol.Error); ok {
				assert.Equal(t, message, e.Message)
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for error %q", message)
		}
	}
}

func expectRoomMsg(t *testing.T, c *Client, typ string) protocol.RoomMessage {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case raw := <-c.Out:
			if v, ok := raw.(protocol.RoomMessage); ok && v.Type == typ {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", typ)
		}
	}
}

func connect(t *testing.T, l *Lobby, name string) (*Client, string) {
	t.Helper()
	c := NewClient("test")
	l.Connect(c)
	conn := expect[protocol.Connected](t, c)
	if name != "" {
		l.Handle(c, protocol.ClientMessage{Type: "setName", Name: name})
		expect[protocol.NameSet](t, c)
	}
	return c, conn.SessionID
}

func TestConnectAssignsSession(t *testing.T) {
	l := startLobby(t)
	c, sid := connect(t, l, "")
	assert.NotEmpty(t, sid)

	l.Handle(c, protocol.ClientMessage{Type: "setName", Name: "alice"})
	set := expect[protocol.NameSet](t, c)
	assert.Equal(t, "alice", set.Name)
}

func TestSetNameValidation(t *testing.T) {
	l := startLobby(t)
	c, _ := connect(t, l, "")

	l.Handle(c, protocol.ClientMessage{Type: "setName", Name: "   "})
	expectError(t, c, "Invalid name")

	l.Handle(c, protocol.ClientMessage{Type: "setName", Name: "this-name-is-way-too-long-to-accept"})
	expectError(t, c, "Invalid name")
}

func TestCreateRoomDefaults(t *testing.T) {
	l := startLobby(t)
	c, _ := connect(t, l, "alice")

	l.Handle(c, protocol.ClientMessage{Type: "createRoom"})
	created := expectRoomMsg(t, c, "roomCreated")
	assert.Equal(t, 7, created.Settings.BestOf)
	assert.Equal(t, 4, created.Settings.WinsNeeded)
	assert.Equal(t, 30, created.Settings.ShotClock)
	assert.Len(t, created.RoomCode, 6)

	l.Handle(c, protocol.ClientMessage{Type: "createRoom"})
	expectError(t, c, "You are already in a room")
}

func TestJoinUnknownRoom(t *testing.T) {
	l := startLobby(t)
	c, _ := connect(t, l, "alice")
	l.Handle(c, protocol.ClientMessage{Type: "joinRoom", RoomCode: "ZZZZZZ", AsPlayer: true})
	expectError(t, c, "Room not found")
}

func TestJoinRoomCodeIsCaseInsensitive(t *testing.T) {
	l := startLobby(t)
	host, _ := connect(t, l, "alice")
	l.Handle(host, protocol.ClientMessage{Type: "createRoom"})
	created := expectRoomMsg(t, host, "roomCreated")

	guest, _ := connect(t, l, "bob")
	lower := " " + strings.ToLower(created.RoomCode) + " "
	l.Handle(guest, protocol.ClientMessage{Type: "joinRoom", RoomCode: lower, AsPlayer: true})
	joined := expectRoomMsg(t, guest, "joinedRoom")
	assert.Equal(t, created.RoomCode, joined.RoomCode)
}

func TestRapidRoomSwitchKeepsSingleSeat(t *testing.T) {
	l := startLobby(t)
	hostA, _ := connect(t, l, "alice")
	l.Handle(hostA, protocol.ClientMessage{Type: "createRoom"})
	roomA := expectRoomMsg(t, hostA, "roomCreated")

	hostB, _ := connect(t, l, "bob")
	l.Handle(hostB, protocol.ClientMessage{Type: "createRoom"})
	roomB := expectRoomMsg(t, hostB, "roomCreated")

	// Two joins back to back, before any room has confirmed anything.
	guest, guestID := connect(t, l, "carol")
	l.Handle(guest, protocol.ClientMessage{Type: "joinRoom", RoomCode: roomA.RoomCode, AsPlayer: true})
	l.Handle(guest, protocol.ClientMessage{Type: "joinRoom", RoomCode: roomB.RoomCode, AsPlayer: true})

	// The first room seats the guest and immediately loses it again.
	joinedA := expect[protocol.PlayerJoined](t, hostA)
	assert.Equal(t, guestID, joinedA.PlayerID)
	leftA := expect[protocol.PlayerLeft](t, hostA)
	assert.Equal(t, guestID, leftA.PlayerID)
	assert.Len(t, leftA.Players, 1)

	joinedB := expect[protocol.PlayerJoined](t, hostB)
	assert.Equal(t, guestID, joinedB.PlayerID)

	// Only one seat is held, so leaving frees the session completely.
	l.Handle(guest, protocol.ClientMessage{Type: "leaveRoom"})
	leftB := expect[protocol.PlayerLeft](t, hostB)
	assert.Equal(t, guestID, leftB.PlayerID)

	l.Handle(guest, protocol.ClientMessage{Type: "createRoom"})
	expectRoomMsg(t, guest, "roomCreated")
}

func TestJoinRejectionReleasesSeatClaim(t *testing.T) {
	l := startLobby(t)
	host, _ := connect(t, l, "alice")
	l.Handle(host, protocol.ClientMessage{Type: "createRoom"})
	created := expectRoomMsg(t, host, "roomCreated")

	p2, _ := connect(t, l, "bob")
	l.Handle(p2, protocol.ClientMessage{Type: "joinRoom", RoomCode: created.RoomCode, AsPlayer: true})
	expectRoomMsg(t, p2, "joinedRoom")

	guest, _ := connect(t, l, "carol")
	l.Handle(guest, protocol.ClientMessage{Type: "joinRoom", RoomCode: created.RoomCode, AsPlayer: true})
	expectError(t, guest, "Room is full")

	// The room's rejection notice releases the seat claim; until it lands
	// the lobby still counts the guest as committed to the join.
	deadline := time.Now().Add(5 * time.Second)
	for freed := false; !freed; {
		require.True(t, time.Now().Before(deadline), "seat claim never released after rejection")
		l.Handle(guest, protocol.ClientMessage{Type: "createRoom"})
	reply:
		for {
			select {
			case raw := <-guest.Out:
				switch m := raw.(type) {
				case protocol.RoomMessage:
					if m.Type == "roomCreated" {
						freed = true
						break reply
					}
				case protocol.Error:
					assert.Equal(t, "You are already in a room", m.Message)
					time.Sleep(10 * time.Millisecond)
					break reply
				}
			case <-time.After(5 * time.Second):
				t.Fatal("no reply to createRoom")
			}
		}
	}
}

func TestDuplicateJoinRejectedAtLobby(t *testing.T) {
	l := startLobby(t)
	host, _ := connect(t, l, "alice")
	l.Handle(host, protocol.ClientMessage{Type: "createRoom"})
	created := expectRoomMsg(t, host, "roomCreated")

	guest, _ := connect(t, l, "bob")
	l.Handle(guest, protocol.ClientMessage{Type: "joinRoom", RoomCode: created.RoomCode, AsPlayer: true})
	expectRoomMsg(t, guest, "joinedRoom")

	l.Handle(guest, protocol.ClientMessage{Type: "joinRoom", RoomCode: created.RoomCode, AsPlayer: true})
	expectError(t, guest, "You are already in this room")
}

func TestRoomScopedCommandRequiresRoom(t *testing.T) {
	l := startLobby(t)
	c, _ := connect(t, l, "alice")
	l.Handle(c, protocol.ClientMessage{Type: "makeMove", Move: "rock"})
	expectError(t, c, "You are not in a room")

	l.Handle(c, protocol.ClientMessage{Type: "makeMove", Move: "lizard"})
	expectError(t, c, "Invalid move")
}

func TestInvitationLifecycle(t *testing.T) {
	l := startLobby(t)
	host, hostID := connect(t, l, "alice")
	target, targetID := connect(t, l, "bob")

	// Inviting before being in a room fails.
	l.Handle(host, protocol.ClientMessage{Type: "invitePlayer", TargetID: targetID})
	expectError(t, host, "You must be in a room to invite players")

	l.Handle(host, protocol.ClientMessage{Type: "createRoom"})
	created := expectRoomMsg(t, host, "roomCreated")

	l.Handle(host, protocol.ClientMessage{Type: "invitePlayer", TargetID: hostID})
	expectError(t, host, "You cannot invite yourself")

	l.Handle(host, protocol.ClientMessage{Type: "invitePlayer", TargetID: targetID})
	sent := expect[protocol.InvitationSent](t, host)
	assert.Equal(t, "bob", sent.TargetName)

	recv := expect[protocol.InvitationReceived](t, target)
	assert.Equal(t, hostID, recv.FromID)
	assert.Equal(t, created.RoomCode, recv.RoomCode)

	// One pending invitation per target, globally.
	other, _ := connect(t, l, "carol")
	l.Handle(other, protocol.ClientMessage{Type: "createRoom"})
	expectRoomMsg(t, other, "roomCreated")
	l.Handle(other, protocol.ClientMessage{Type: "invitePlayer", TargetID: targetID})
	expectError(t, other, "Player already has a pending invitation")

	// Accepting seats the target and starts the game.
	l.Handle(target, protocol.ClientMessage{Type: "acceptInvitation", RoomCode: created.RoomCode})
	joined := expectRoomMsg(t, target, "joinedRoom")
	assert.True(t, joined.GameStarted)
	expect[protocol.InvitationAccepted](t, host)
}

func TestDeclineInvitationIsIdempotent(t *testing.T) {
	l := startLobby(t)
	host, _ := connect(t, l, "alice")
	target, targetID := connect(t, l, "bob")

	l.Handle(host, protocol.ClientMessage{Type: "createRoom"})
	created := expectRoomMsg(t, host, "roomCreated")
	l.Handle(host, protocol.ClientMessage{Type: "invitePlayer", TargetID: targetID})
	expect[protocol.InvitationReceived](t, target)

	l.Handle(target, protocol.ClientMessage{Type: "declineInvitation", RoomCode: created.RoomCode})
	declined := expect[protocol.InvitationDeclined](t, host)
	assert.Equal(t, targetID, declined.TargetID)

	// A second decline is a silent no-op; the host can then re-invite.
	l.Handle(target, protocol.ClientMessage{Type: "declineInvitation", RoomCode: created.RoomCode})
	l.Handle(host, protocol.ClientMessage{Type: "invitePlayer", TargetID: targetID})
	expect[protocol.InvitationSent](t, host)
}

func TestCancelInvitation(t *testing.T) {
	l := startLobby(t)
	host, hostID := connect(t, l, "alice")
	target, targetID := connect(t, l, "bob")

	l.Handle(host, protocol.ClientMessage{Type: "createRoom"})
	expectRoomMsg(t, host, "roomCreated")
	l.Handle(host, protocol.ClientMessage{Type: "invitePlayer", TargetID: targetID})
	expect[protocol.InvitationReceived](t, target)

	l.Handle(host, protocol.ClientMessage{Type: "cancelInvitation", TargetID: targetID})
	cancelled := expect[protocol.InvitationCancelled](t, target)
	assert.Equal(t, hostID, cancelled.FromID)

	// The slot is free again.
	l.Handle(host, protocol.ClientMessage{Type: "invitePlayer", TargetID: targetID})
	expect[protocol.InvitationSent](t, host)
}

func TestReconnectResumesRoom(t *testing.T) {
	l := startLobby(t)
	c1, sid := connect(t, l, "alice")
	l.Handle(c1, protocol.ClientMessage{Type: "createRoom"})
	created := expectRoomMsg(t, c1, "roomCreated")

	l.Disconnect(c1)

	c2 := NewClient("test")
	l.Connect(c2)
	expect[protocol.Connected](t, c2)
	l.Handle(c2, protocol.ClientMessage{Type: "reconnect", SessionID: sid})

	rc := expect[protocol.Reconnected](t, c2)
	assert.Equal(t, sid, rc.SessionID)
	assert.Equal(t, "alice", rc.Name)
	assert.False(t, rc.RoomGone)
	require.NotNil(t, rc.RoomSnapshot)
	assert.Equal(t, created.RoomCode, rc.RoomSnapshot.RoomCode)
}

func TestReconnectUnknownSession(t *testing.T) {
	l := startLobby(t)
	c, _ := connect(t, l, "")
	l.Handle(c, protocol.ClientMessage{Type: "reconnect", SessionID: "bogus"})
	failed := expect[protocol.ReconnectFailed](t, c)
	assert.Equal(t, "Session not found", failed.Reason)
}

func TestPublicRoomListing(t *testing.T) {
	l := startLobby(t)
	host, _ := connect(t, l, "alice")
	l.Handle(host, protocol.ClientMessage{Type: "createRoom", IsPublic: true, BestOf: 3, ShotClock: 15})
	expectRoomMsg(t, host, "roomCreated")

	viewer, _ := connect(t, l, "bob")
	l.Handle(viewer, protocol.ClientMessage{Type: "getPublicRooms"})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case raw := <-viewer.Out:
			pr, ok := raw.(protocol.PublicRooms)
			if !ok || pr.Type != "publicRooms" {
				continue
			}
			require.Len(t, pr.Rooms, 1)
			assert.Equal(t, "alice", pr.Rooms[0].HostName)
			assert.Equal(t, 3, pr.Rooms[0].Settings.BestOf)
			assert.Equal(t, 1, pr.Rooms[0].PlayerCount)
			return
		case <-deadline:
			t.Fatal("timed out waiting for publicRooms")
		}
	}
}

func TestOnlineUsersExcludeUnnamed(t *testing.T) {
	l := startLobby(t)
	named, namedID := connect(t, l, "alice")
	connect(t, l, "")

	l.Handle(named, protocol.ClientMessage{Type: "getOnlineUsers"})
	deadline := time.After(5 * time.Second)
	for {
		select {
		case raw := <-named.Out:
			ou, ok := raw.(protocol.OnlineUsers)
			if !ok || ou.Type != "onlineUsers" {
				continue
			}
			require.Len(t, ou.Users, 1)
			assert.Equal(t, namedID, ou.Users[0].ID)
			return
		case <-deadline:
			t.Fatal("timed out waiting for onlineUsers")
		}
	}
}

func TestNewSessionResetsIdentity(t *testing.T) {
	l := startLobby(t)
	c, old := connect(t, l, "alice")

	l.Handle(c, protocol.ClientMessage{Type: "getNewSession"})
	ns := expect[protocol.NewSession](t, c)
	assert.NotEmpty(t, ns.SessionID)
	assert.NotEqual(t, old, ns.SessionID)
}
