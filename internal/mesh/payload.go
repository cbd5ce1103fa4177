package mesh

import "github.com/pion/webrtc/v4"

// Negotiation payload carried opaquely through the relay. Only the two
// coordinators at each end interpret it.
const (
	kindOffer     = "offer"
	kindAnswer    = "answer"
	kindCandidate = "candidate"
)

type signalPayload struct {
	Kind          string  `json:"kind"`
	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func offerPayload(sdp webrtc.SessionDescription) signalPayload {
	return signalPayload{Kind: kindOffer, SDP: sdp.SDP}
}

func answerPayload(sdp webrtc.SessionDescription) signalPayload {
	return signalPayload{Kind: kindAnswer, SDP: sdp.SDP}
}

func candidatePayload(ci webrtc.ICECandidateInit) signalPayload {
	return signalPayload{
		Kind:          kindCandidate,
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	}
}

func (p signalPayload) offer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}
}

func (p signalPayload) answer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}
}

func (p signalPayload) candidateInit() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     p.Candidate,
		SDPMid:        p.SDPMid,
		SDPMLineIndex: p.SDPMLineIndex,
	}
}
