package rtc

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hostCandidate = "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host"

func newTestLink(t *testing.T) *Link {
	t.Helper()
	f := NewFactory([]string{"stun:stun.l.google.com:19302"})
	ml, err := f.NewLink("remote")
	require.NoError(t, err)
	l := ml.(*Link)
	t.Cleanup(l.Close)
	return l
}

func localTrack(t *testing.T) *webrtc.TrackLocalStaticSample {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "link-test",
	)
	require.NoError(t, err)
	return track
}

func TestOfferAnswerHandshake(t *testing.T) {
	a := newTestLink(t)
	b := newTestLink(t)

	require.NoError(t, a.AddLocalTrack(localTrack(t)))

	offer, err := a.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)

	answer, err := b.ApplyOffer(offer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	require.NoError(t, a.ApplyAnswer(answer))
	assert.NotNil(t, a.pc.RemoteDescription())
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	a := newTestLink(t)
	b := newTestLink(t)

	// Trickle: the remote's candidates can overtake its session description.
	require.NoError(t, b.AddICECandidate(webrtc.ICECandidateInit{Candidate: hostCandidate}))
	b.mu.Lock()
	buffered := len(b.pending)
	b.mu.Unlock()
	require.Equal(t, 1, buffered)
	assert.Nil(t, b.pc.RemoteDescription())

	require.NoError(t, a.AddLocalTrack(localTrack(t)))
	offer, err := a.CreateOffer()
	require.NoError(t, err)
	_, err = b.ApplyOffer(offer)
	require.NoError(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Empty(t, b.pending, "buffered candidates flushed with the remote description")
}

func TestCandidateAppliedDirectlyAfterRemoteDescription(t *testing.T) {
	a := newTestLink(t)
	b := newTestLink(t)

	require.NoError(t, a.AddLocalTrack(localTrack(t)))
	offer, err := a.CreateOffer()
	require.NoError(t, err)
	_, err = b.ApplyOffer(offer)
	require.NoError(t, err)

	require.NoError(t, b.AddICECandidate(webrtc.ICECandidateInit{Candidate: hostCandidate}))
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Empty(t, b.pending)
}

func TestSpontaneousCloseFiresOnce(t *testing.T) {
	l := newTestLink(t)
	fired := make(chan struct{}, 2)
	l.OnClosed(func() { fired <- struct{}{} })

	l.fireClosed()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("OnClosed never fired")
	}

	l.fireClosed()
	select {
	case <-fired:
		t.Fatal("OnClosed fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestExplicitCloseDoesNotFireOnClosed(t *testing.T) {
	l := newTestLink(t)
	fired := make(chan struct{}, 1)
	l.OnClosed(func() { fired <- struct{}{} })

	l.Close()
	l.Close() // idempotent
	assert.True(t, l.IsClosed())

	// State callbacks racing the explicit close must stay silent.
	l.fireClosed()
	select {
	case <-fired:
		t.Fatal("explicit close must not report spontaneous closure")
	case <-time.After(50 * time.Millisecond):
	}
}
