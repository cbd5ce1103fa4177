package mesh

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Detector samples the local capture spectrum at a fixed cadence and emits
// speaking transitions with hysteresis: a rise above the threshold fires
// immediately, a fall has to stay below it for the whole grace window before
// the stop fires. A burst during the grace window cancels the pending stop.
type Detector struct {
	threshold float64
	interval  time.Duration
	grace     time.Duration

	spectrum func() ([]float64, error)
	onChange func(speaking bool)

	stop chan struct{}
	once sync.Once
}

func NewDetector(threshold float64, interval, grace time.Duration, spectrum func() ([]float64, error), onChange func(bool)) *Detector {
	return &Detector{
		threshold: threshold,
		interval:  interval,
		grace:     grace,
		spectrum:  spectrum,
		onChange:  onChange,
		stop:      make(chan struct{}),
	}
}

func (d *Detector) Start() {
	go d.loop()
}

// Stop halts sampling. It only signals; the loop exits on its next tick, and
// the owner is responsible for announcing a final not-speaking if needed.
func (d *Detector) Stop() {
	d.once.Do(func() { close(d.stop) })
}

func (d *Detector) loop() {
	tick := time.NewTicker(d.interval)
	defer tick.Stop()

	speaking := false
	var lowSince time.Time

	for {
		select {
		case <-d.stop:
			return
		case <-tick.C:
		}

		bins, err := d.spectrum()
		if err != nil {
			// Capture released under us; the coordinator stops the detector
			// on release, this just closes the race window.
			log.Debug().Err(err).Str("module", "mesh.detector").Msg("spectrum unavailable, stopping")
			return
		}
		level := mean(bins)

		switch {
		case level > d.threshold:
			lowSince = time.Time{}
			if !speaking {
				speaking = true
				d.onChange(true)
			}
		case speaking:
			now := time.Now()
			if lowSince.IsZero() {
				lowSince = now
			} else if now.Sub(lowSince) >= d.grace {
				speaking = false
				lowSince = time.Time{}
				d.onChange(false)
			}
		}
	}
}

func mean(bins []float64) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, v := range bins {
		sum += v
	}
	return sum / float64(len(bins))
}
