package lobby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeWithinGrace(t *testing.T) {
	reg := NewRegistry(time.Minute)
	now := time.Now()
	reg.now = func() time.Time { return now }

	s := reg.Open()
	s.Name = "alice"
	reg.MarkDisconnected(s.ID)

	now = now.Add(30 * time.Second)
	resumed, err := reg.Resume(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", resumed.Name)
	assert.True(t, resumed.connected())
}

func TestResumePastGraceExpires(t *testing.T) {
	reg := NewRegistry(time.Minute)
	now := time.Now()
	reg.now = func() time.Time { return now }

	s := reg.Open()
	reg.MarkDisconnected(s.ID)

	now = now.Add(2 * time.Minute)
	_, err := reg.Resume(s.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// The expired session is gone for good.
	_, err = reg.Resume(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResumeUnknownSession(t *testing.T) {
	reg := NewRegistry(time.Minute)
	_, err := reg.Resume("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResumeConnectedSessionIgnoresGrace(t *testing.T) {
	reg := NewRegistry(time.Minute)
	now := time.Now()
	reg.now = func() time.Time { return now }

	s := reg.Open()
	now = now.Add(10 * time.Minute)
	_, err := reg.Resume(s.ID)
	assert.NoError(t, err)
}

func TestSweepCollectsOnlyExpired(t *testing.T) {
	reg := NewRegistry(time.Minute)
	now := time.Now()
	reg.now = func() time.Time { return now }

	live := reg.Open()
	fresh := reg.Open()
	stale := reg.Open()
	stale.RoomCode = "ABC123"

	reg.MarkDisconnected(stale.ID)
	now = now.Add(90 * time.Second)
	reg.MarkDisconnected(fresh.ID)

	expired := reg.Sweep()
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
	assert.Equal(t, "ABC123", expired[0].RoomCode)

	assert.NotNil(t, reg.Get(live.ID))
	assert.NotNil(t, reg.Get(fresh.ID))
	assert.Nil(t, reg.Get(stale.ID))
}
