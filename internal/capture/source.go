package capture

import (
	"context"
	"math"
	"time"
)

const (
	SampleRate    = 48000
	FrameDuration = 20 * time.Millisecond
	FrameSamples  = SampleRate / 50 // 20ms mono
	SpectrumBins  = 32
)

// Frame is one capture window: the encoded payload for the wire plus the raw
// PCM it came from, kept for local signal analysis.
type Frame struct {
	Data []byte
	PCM  []int16
}

// Source is a platform audio input. ReadFrame blocks until the next frame is
// available and paces the feed loop.
type Source interface {
	ReadFrame() (Frame, error)
	Close() error
}

// ToneSource generates a steady sine wave. Development stand-in for a real
// microphone backend.
type ToneSource struct {
	freq  float64
	phase float64
	tick  *time.Ticker
	done  chan struct{}
}

func OpenTone(ctx context.Context) (Source, error) {
	return &ToneSource{freq: 440, tick: time.NewTicker(FrameDuration), done: make(chan struct{})}, nil
}

func (s *ToneSource) ReadFrame() (Frame, error) {
	select {
	case <-s.done:
		return Frame{}, ErrReleased
	case <-s.tick.C:
	}
	pcm := make([]int16, FrameSamples)
	data := make([]byte, FrameSamples*2)
	step := 2 * math.Pi * s.freq / SampleRate
	for i := range pcm {
		v := int16(8000 * math.Sin(s.phase))
		s.phase += step
		pcm[i] = v
		data[2*i] = byte(uint16(v))
		data[2*i+1] = byte(uint16(v) >> 8)
	}
	if s.phase > 2*math.Pi {
		s.phase -= 2 * math.Pi
	}
	return Frame{Data: data, PCM: pcm}, nil
}

func (s *ToneSource) Close() error {
	s.tick.Stop()
	close(s.done)
	return nil
}

// binMagnitudes computes a coarse DFT: mean magnitude per bin over evenly
// spaced frequencies. The detector only compares the mean against a
// threshold, so exactness does not matter.
func binMagnitudes(pcm []int16, bins int) []float64 {
	out := make([]float64, bins)
	n := len(pcm)
	if n == 0 {
		return out
	}
	for k := 0; k < bins; k++ {
		omega := 2 * math.Pi * float64(k+1) / float64(2*bins)
		var re, im float64
		for i, s := range pcm {
			a := omega * float64(i)
			v := float64(s) / 256 // scale near the 0..255 byte-magnitude range
			re += v * math.Cos(a)
			im += v * math.Sin(a)
		}
		out[k] = math.Sqrt(re*re+im*im) / float64(n)
	}
	return out
}
