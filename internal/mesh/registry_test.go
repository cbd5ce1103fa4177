package mesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/meshvoice/internal/core"
	"github.com/dkeye/meshvoice/internal/domain"
)

func TestRegistryRejectsSecondLivePeer(t *testing.T) {
	r := NewRegistry(0, 0)
	require.NoError(t, r.Add("bob", domain.RoleInitiator, &fakeLink{remote: "bob"}))

	err := r.Add("bob", domain.RoleResponder, &fakeLink{remote: "bob"})
	assert.ErrorIs(t, err, core.ErrPeerExists)
	assert.Equal(t, 1, r.LiveCount())
}

func TestRegistryDestroyIsIdempotent(t *testing.T) {
	r := NewRegistry(0, 0)
	link := &fakeLink{remote: "bob"}
	require.NoError(t, r.Add("bob", domain.RoleInitiator, link))

	assert.True(t, r.Destroy("bob"))
	assert.False(t, r.Destroy("bob"), "second destroy is a no-op")
	assert.True(t, link.IsClosed())
	assert.True(t, r.IsDestroyed("bob"))
	assert.Equal(t, 0, r.LiveCount())
}

func TestRegistryDestroyWithoutPeerStillBlocklists(t *testing.T) {
	r := NewRegistry(0, 0)
	assert.False(t, r.Destroy("ghost"))
	assert.True(t, r.IsDestroyed("ghost"))
}

func TestRegistryAddClearsDestroyedOnRejoin(t *testing.T) {
	r := NewRegistry(0, 0)
	require.NoError(t, r.Add("bob", domain.RoleInitiator, &fakeLink{remote: "bob"}))
	r.Destroy("bob")
	require.True(t, r.IsDestroyed("bob"))

	require.NoError(t, r.Add("bob", domain.RoleInitiator, &fakeLink{remote: "bob"}))
	assert.False(t, r.IsDestroyed("bob"), "a fresh connection unblocks signaling")
}

func TestRegistryResetClearsDestroyedSet(t *testing.T) {
	r := NewRegistry(0, 0)
	link := &fakeLink{remote: "bob"}
	require.NoError(t, r.Add("bob", domain.RoleInitiator, link))
	r.Destroy("carol")

	r.Reset()

	assert.True(t, link.IsClosed())
	assert.Equal(t, 0, r.LiveCount())
	assert.False(t, r.IsDestroyed("bob"))
	assert.False(t, r.IsDestroyed("carol"))
	assert.Empty(t, r.Statuses())
}

func TestRegistryMarkConnectedOnDestroyedFails(t *testing.T) {
	r := NewRegistry(0, 0)
	require.NoError(t, r.Add("bob", domain.RoleInitiator, &fakeLink{remote: "bob"}))
	r.Destroy("bob")
	assert.False(t, r.MarkConnected("bob"))
}

func TestRegistryNegotiationDeadline(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, 0)
	expired := make(chan domain.UserID, 1)
	r.OnNegotiationExpired(func(u domain.UserID) { expired <- u })

	require.NoError(t, r.Add("slow", domain.RoleInitiator, &fakeLink{remote: "slow"}))

	select {
	case u := <-expired:
		assert.Equal(t, domain.UserID("slow"), u)
	case <-time.After(time.Second):
		t.Fatal("negotiation deadline never fired")
	}
}

func TestRegistryConnectedPeerDoesNotExpire(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, 0)
	expired := make(chan domain.UserID, 1)
	r.OnNegotiationExpired(func(u domain.UserID) { expired <- u })

	require.NoError(t, r.Add("fast", domain.RoleInitiator, &fakeLink{remote: "fast"}))
	require.True(t, r.MarkConnected("fast"))

	select {
	case <-expired:
		t.Fatal("connected peer must not hit the negotiation deadline")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRegistryLingerDelaysEntryRemoval(t *testing.T) {
	r := NewRegistry(0, 30*time.Millisecond)
	require.NoError(t, r.Add("bob", domain.RoleInitiator, &fakeLink{remote: "bob"}))
	r.Destroy("bob")

	// Entry lingers in Destroyed state for concurrent readers...
	statuses := r.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "destroyed", statuses[0].State)

	// ...and disappears after the delay.
	assert.Eventually(t, func() bool {
		return len(r.Statuses()) == 0
	}, time.Second, 10*time.Millisecond)
}
