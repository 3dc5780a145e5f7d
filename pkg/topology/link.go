// Package topology models the network state of the simulated cloud:
// per-device access links, inter-area backbones, bandwidth reservation,
// transient transfer occupancy, and latency/jitter sampling (component B).
package topology

import (
	"math"
	"math/rand"

	"github.com/casperlundberg/openraas-sim/pkg/simerr"
)

// negativeTolerance is the slack below zero a bandwidth reservation is
// still considered legal within.
const negativeTolerance = 1e-10

// Link is one network link: an access line or a backbone.
type Link struct {
	CapacityBW   float64 // MBps
	BaseLatency  float64 // ms
	MeanJitter   float64 // jitter-count scale
	jitterStdDev float64

	FreeBW float64 // decremented by long-lived reservations (desktop streaming)

	// OccupiedTime is transient per-slot scalar: the earliest time (ms
	// from slot start) at which the link is no longer back-to-back busy
	// with short transfers. Cleared every Step.
	OccupiedTime float64
}

// NewLink builds a link with the given capacity/base latency/mean jitter.
// jitterStdDev controls the scaled-normal noise used by SampleJitter.
func NewLink(bw, latency, meanJitter, jitterStdDev float64) *Link {
	return &Link{
		CapacityBW:   bw,
		BaseLatency:  latency,
		MeanJitter:   meanJitter,
		jitterStdDev: jitterStdDev,
		FreeBW:       bw,
	}
}

// SampleJitter draws one jitter sample: mean + scaled-normal noise, clamped
// to non-negative.
func (l *Link) SampleJitter(rng *rand.Rand) float64 {
	v := l.MeanJitter + rng.NormFloat64()*l.jitterStdDev
	if v < 0 {
		return 0
	}
	return v
}

// Reserve decrements FreeBW by bw. A result below -negativeTolerance is a
// Negative error; the link is left unchanged in that case.
func (l *Link) Reserve(bw float64) error {
	next := l.FreeBW - bw
	if next < -negativeTolerance {
		return simerr.New("link.Reserve", simerr.Negative)
	}
	l.FreeBW = next
	return nil
}

// Release increments FreeBW by bw, the exact inverse of Reserve.
func (l *Link) Release(bw float64) error {
	next := l.FreeBW + bw
	if next < -negativeTolerance {
		return simerr.New("link.Release", simerr.Negative)
	}
	l.FreeBW = next
	return nil
}

// Step zeroes the transient occupancy, as done once per slot by the
// topology).
func (l *Link) Step() { l.OccupiedTime = 0 }

// TransmitEnd advances OccupiedTime to the end of a transfer of byteSize
// bytes starting no earlier than minStart, and returns that end time (ms).
func (l *Link) TransmitEnd(speed float64, byteSize float64, minStart float64) float64 {
	begin := math.Max(l.OccupiedTime, minStart)
	duration := 0.0
	if speed > 0 {
		duration = byteSize / speed * 1000
	}
	end := begin + duration
	l.OccupiedTime = end
	return end
}
