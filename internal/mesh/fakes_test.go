package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/meshvoice/internal/core"
	"github.com/dkeye/meshvoice/internal/domain"
)

type sentSignal struct {
	target  domain.UserID
	payload signalPayload
}

type fakeRelay struct {
	mu      sync.Mutex
	calls   []string
	signals []sentSignal
}

func (r *fakeRelay) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *fakeRelay) AnnounceJoin(ch domain.ChannelID, muted bool) {
	r.record(fmt.Sprintf("join:%s:%v", ch, muted))
}

func (r *fakeRelay) AnnounceLeave(ch domain.ChannelID) {
	r.record(fmt.Sprintf("leave:%s", ch))
}

func (r *fakeRelay) SendNegotiation(ch domain.ChannelID, target domain.UserID, payload json.RawMessage) {
	var p signalPayload
	_ = json.Unmarshal(payload, &p)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("signal:%s:%s:%s", ch, target, p.Kind))
	r.signals = append(r.signals, sentSignal{target: target, payload: p})
}

func (r *fakeRelay) AnnounceMute(ch domain.ChannelID, muted bool) {
	r.record(fmt.Sprintf("mute:%s:%v", ch, muted))
}

func (r *fakeRelay) AnnounceSpeaking(ch domain.ChannelID, speaking bool) {
	r.record(fmt.Sprintf("speaking:%s:%v", ch, speaking))
}

func (r *fakeRelay) RequestParticipants(ch domain.ChannelID) {
	r.record(fmt.Sprintf("participants:%s", ch))
}

func (r *fakeRelay) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *fakeRelay) sentSignals() []sentSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentSignal, len(r.signals))
	copy(out, r.signals)
	return out
}

type fakeHandle struct {
	mu       sync.Mutex
	muted    bool
	released bool
	level    float64
}

func (h *fakeHandle) Track() webrtc.TrackLocal { return nil }

func (h *fakeHandle) SetMuted(muted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.muted = muted
}

func (h *fakeHandle) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

func (h *fakeHandle) Spectrum() ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return []float64{h.level}, nil
}

func (h *fakeHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
}

func (h *fakeHandle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

type fakeDevice struct {
	mu      sync.Mutex
	err     error
	handles []*fakeHandle
}

func (d *fakeDevice) Acquire(ctx context.Context) (core.CaptureHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, &core.CaptureError{Err: d.err}
	}
	h := &fakeHandle{}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDevice) acquired() []*fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*fakeHandle, len(d.handles))
	copy(out, d.handles)
	return out
}

type fakeLink struct {
	remote domain.UserID

	mu         sync.Mutex
	closed     bool
	started    bool
	trackAdded bool
	answers    []string
	offers     []string
	candidates []webrtc.ICECandidateInit
	applyErr   error

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(core.RemoteTrack)
	onClosed func()
}

func (l *fakeLink) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	return nil
}

func (l *fakeLink) AddLocalTrack(track webrtc.TrackLocal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trackAdded = true
	return nil
}

func (l *fakeLink) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-" + string(l.remote)}, nil
}

func (l *fakeLink) ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.applyErr != nil {
		return webrtc.SessionDescription{}, l.applyErr
	}
	l.offers = append(l.offers, offer.SDP)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-" + string(l.remote)}, nil
}

func (l *fakeLink) ApplyAnswer(answer webrtc.SessionDescription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.applyErr != nil {
		return l.applyErr
	}
	l.answers = append(l.answers, answer.SDP)
	return nil
}

func (l *fakeLink) AddICECandidate(ci webrtc.ICECandidateInit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.applyErr != nil {
		return l.applyErr
	}
	l.candidates = append(l.candidates, ci)
	return nil
}

func (l *fakeLink) OnICECandidate(fn func(webrtc.ICECandidateInit)) { l.onICE = fn }
func (l *fakeLink) OnTrack(fn func(core.RemoteTrack))               { l.onTrack = fn }
func (l *fakeLink) OnClosed(fn func())                              { l.onClosed = fn }

func (l *fakeLink) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

func (l *fakeLink) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) appliedAnswers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.answers))
	copy(out, l.answers)
	return out
}

type fakeFactory struct {
	mu    sync.Mutex
	links []*fakeLink
	err   error
}

func (f *fakeFactory) NewLink(remote domain.UserID) (core.MediaLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	l := &fakeLink{remote: remote}
	f.links = append(f.links, l)
	return l, nil
}

func (f *fakeFactory) created() []*fakeLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeLink, len(f.links))
	copy(out, f.links)
	return out
}

type fakeSink struct {
	mu      sync.Mutex
	entries map[domain.UserID]string
}

func newFakeSink() *fakeSink {
	return &fakeSink{entries: make(map[domain.UserID]string)}
}

func (s *fakeSink) Attach(user domain.UserID, track core.RemoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[user] = track.ID()
}

func (s *fakeSink) Detach(user domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, user)
}

func (s *fakeSink) DetachAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[domain.UserID]string)
}

func (s *fakeSink) Attached() []domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserID, 0, len(s.entries))
	for u := range s.entries {
		out = append(out, u)
	}
	return out
}

func sdp(s string) webrtc.SessionDescription {
	return webrtc.SessionDescription{SDP: s}
}

type fakeRemoteTrack struct{ id string }

func (t *fakeRemoteTrack) ID() string                 { return t.id }
func (t *fakeRemoteTrack) Kind() webrtc.RTPCodecType  { return webrtc.RTPCodecTypeAudio }
func (t *fakeRemoteTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, fmt.Errorf("fake track has no packets")
}
