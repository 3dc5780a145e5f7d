package topology

import (
	"math"
	"math/rand"

	"github.com/casperlundberg/openraas-sim/pkg/simerr"
)

// BandwidthSink is the minimal device-side hook Topology needs to keep a
// device's own bandwidth bookkeeping in sync with its access-link
// reservations. *device.Device satisfies this.
type BandwidthSink interface {
	ReserveBW(bw float64) error
	ReleaseBW(bw float64) error
}

// LinkState is the (speed, latency, jitter) triple reported for a pair of
// devices by Topology.LinkState.
type LinkState struct {
	Speed   float64
	Latency float64
	Jitter  float64
}

// Topology owns every Area, wires devices into access links (wired for
// servers, wireless for clients), and answers link-state queries.
type Topology struct {
	rng        *rand.Rand
	cfg        Config
	areas      []*Area
	deviceArea map[int]int // device id -> area id
}

// Config controls the link parameters used by New.
type Config struct {
	AreaNum int

	WiredAccessBW      float64
	WiredAccessLatency float64
	WiredAccessJitter  float64

	WirelessAccessBW      float64
	WirelessAccessLatency float64
	WirelessAccessJitter  float64

	BackboneBW      float64
	BackboneLatency float64
	BackboneJitter  float64

	JitterStdDevFraction float64 // scales MeanJitter into a stddev for sampling
}

// DefaultConfig returns parameters representative of a metro-scale cloud
// (servers: bw=125MBps).
func DefaultConfig(areaNum int) Config {
	return Config{
		AreaNum:               areaNum,
		WiredAccessBW:         125,
		WiredAccessLatency:    2,
		WiredAccessJitter:     0.5,
		WirelessAccessBW:      20,
		WirelessAccessLatency: 15,
		WirelessAccessJitter:  3,
		BackboneBW:            1000,
		BackboneLatency:       5,
		BackboneJitter:        1,
		JitterStdDevFraction:  0.3,
	}
}

// New builds a Topology with areaNum empty areas, each with its own
// backbone link.
func New(cfg Config, rng *rand.Rand) *Topology {
	t := &Topology{
		rng:        rng,
		cfg:        cfg,
		deviceArea: make(map[int]int),
	}
	for i := 0; i < cfg.AreaNum; i++ {
		bb := NewLink(cfg.BackboneBW, cfg.BackboneLatency, cfg.BackboneJitter, cfg.BackboneJitter*cfg.JitterStdDevFraction)
		t.areas = append(t.areas, newArea(i, bb))
	}
	return t
}

// AddDevice wires deviceID into areaID with a wired or wireless access
// link depending on wired. areaID<0 picks a uniformly random area.
func (t *Topology) AddDevice(deviceID int, areaID int, wired bool) {
	if areaID < 0 {
		areaID = t.rng.Intn(len(t.areas))
	}
	var access *Link
	if wired {
		access = NewLink(t.cfg.WiredAccessBW, t.cfg.WiredAccessLatency, t.cfg.WiredAccessJitter, t.cfg.WiredAccessJitter*t.cfg.JitterStdDevFraction)
	} else {
		access = NewLink(t.cfg.WirelessAccessBW, t.cfg.WirelessAccessLatency, t.cfg.WirelessAccessJitter, t.cfg.WirelessAccessJitter*t.cfg.JitterStdDevFraction)
	}
	t.areas[areaID].addDevice(deviceID, access)
	t.deviceArea[deviceID] = areaID
}

// Reset clears every device/area/link, keeping the area count and link
// parameter configuration (called from Environment.reset via a fresh New
// in practice, but exposed for tests that want to reuse one Topology value).
func (t *Topology) Reset() {
	for i, a := range t.areas {
		t.areas[i] = newArea(a.ID, NewLink(t.cfg.BackboneBW, t.cfg.BackboneLatency, t.cfg.BackboneJitter, t.cfg.BackboneJitter*t.cfg.JitterStdDevFraction))
	}
	t.deviceArea = make(map[int]int)
}

// AreaOf returns the area id deviceID was added to.
func (t *Topology) AreaOf(deviceID int) (int, bool) {
	id, ok := t.deviceArea[deviceID]
	return id, ok
}

// AccessLink returns deviceID's access link.
func (t *Topology) AccessLink(deviceID int) (*Link, error) {
	areaID, ok := t.deviceArea[deviceID]
	if !ok {
		return nil, simerr.New("topology.AccessLink", simerr.NotFound)
	}
	l, ok := t.areas[areaID].access(deviceID)
	if !ok {
		return nil, simerr.New("topology.AccessLink", simerr.NotFound)
	}
	return l, nil
}

func (t *Topology) linksBetween(d1, d2 int) (a1, a2, bb1, bb2 *Link, crossArea bool, err error) {
	area1, ok := t.deviceArea[d1]
	if !ok {
		return nil, nil, nil, nil, false, simerr.New("topology.linksBetween", simerr.NotFound)
	}
	area2, ok := t.deviceArea[d2]
	if !ok {
		return nil, nil, nil, nil, false, simerr.New("topology.linksBetween", simerr.NotFound)
	}
	a1l, _ := t.areas[area1].access(d1)
	a2l, _ := t.areas[area2].access(d2)
	crossArea = area1 != area2
	if crossArea {
		return a1l, a2l, t.areas[area1].Backbone, t.areas[area2].Backbone, true, nil
	}
	return a1l, a2l, nil, nil, false, nil
}

// LinkState reports (speed, latency, jitter) between d1 and d2. d1==d2 returns (+Inf, 0, 0).
func (t *Topology) LinkState(d1, d2 int) (LinkState, error) {
	if d1 == d2 {
		return LinkState{Speed: math.Inf(1)}, nil
	}
	a1, a2, bb1, bb2, cross, err := t.linksBetween(d1, d2)
	if err != nil {
		return LinkState{}, err
	}
	speed := math.Min(a1.FreeBW, a2.FreeBW)
	latency := a1.BaseLatency + a2.BaseLatency
	jitter := a1.SampleJitter(t.rng) + a2.SampleJitter(t.rng)
	if cross {
		speed = math.Min(speed, math.Min(bb1.FreeBW, bb2.FreeBW))
		latency += bb1.BaseLatency + bb2.BaseLatency
		jitter += bb1.SampleJitter(t.rng) + bb2.SampleJitter(t.rng)
	}
	return LinkState{Speed: speed, Latency: latency, Jitter: jitter}, nil
}

// ReserveBW symmetrically decrements both access links (and both
// backbones if d1/d2 are cross-area) by bw, and also decrements dev1/dev2's
// own bandwidth bookkeeping. Fails Negative, leaving no partial mutation,
// if any component would go below -1e-10.
func (t *Topology) ReserveBW(d1, d2 int, bw float64, dev1, dev2 BandwidthSink) error {
	return t.adjustBW(d1, d2, bw, dev1, dev2, true)
}

// ReleaseBW is the exact inverse of ReserveBW.
func (t *Topology) ReleaseBW(d1, d2 int, bw float64, dev1, dev2 BandwidthSink) error {
	return t.adjustBW(d1, d2, bw, dev1, dev2, false)
}

func (t *Topology) adjustBW(d1, d2 int, bw float64, dev1, dev2 BandwidthSink, reserve bool) error {
	a1, a2, bb1, bb2, cross, err := t.linksBetween(d1, d2)
	if err != nil {
		return err
	}
	links := []*Link{a1, a2}
	if cross {
		links = append(links, bb1, bb2)
	}
	// validate first so the operation is all-or-nothing
	sign := 1.0
	if !reserve {
		sign = -1.0
	}
	for _, l := range links {
		next := l.FreeBW - sign*bw
		if next < -negativeTolerance {
			return simerr.New("topology.adjustBW", simerr.Negative)
		}
	}
	for _, l := range links {
		l.FreeBW -= sign * bw
	}
	undoLinks := func() {
		for _, l := range links {
			l.FreeBW += sign * bw
		}
	}
	if reserve {
		if err := dev1.ReserveBW(bw); err != nil {
			undoLinks()
			return err
		}
		if err := dev2.ReserveBW(bw); err != nil {
			_ = dev1.ReleaseBW(bw)
			undoLinks()
			return err
		}
	} else {
		if err := dev1.ReleaseBW(bw); err != nil {
			undoLinks()
			return err
		}
		if err := dev2.ReleaseBW(bw); err != nil {
			_ = dev1.ReserveBW(bw)
			undoLinks()
			return err
		}
	}
	return nil
}

// LinkOccupiedTime returns the minimum OccupiedTime across the relevant
// links: both access links always, and both backbones only when d1/d2 are
// cross-area and both backbones have non-zero occupancy.
func (t *Topology) LinkOccupiedTime(d1, d2 int) (float64, error) {
	a1, a2, bb1, bb2, cross, err := t.linksBetween(d1, d2)
	if err != nil {
		return 0, err
	}
	min := math.Min(a1.OccupiedTime, a2.OccupiedTime)
	if cross && bb1.OccupiedTime != 0 && bb2.OccupiedTime != 0 {
		min = math.Min(min, math.Min(bb1.OccupiedTime, bb2.OccupiedTime))
	}
	return min, nil
}

// Transmit advances the occupancy of the relevant links (access links, and
// both backbones if cross-area) to the end of a transfer of byteSize bytes
// that cannot start before minStart, and returns that end time in ms.
func (t *Topology) Transmit(d1, d2 int, byteSize float64, minStart float64) (float64, error) {
	state, err := t.LinkState(d1, d2)
	if err != nil {
		return 0, err
	}
	begin, err := t.LinkOccupiedTime(d1, d2)
	if err != nil {
		return 0, err
	}
	begin = math.Max(begin, minStart)
	duration := 0.0
	if state.Speed > 0 && !math.IsInf(state.Speed, 1) {
		duration = byteSize / state.Speed * 1000
	}
	end := begin + duration

	a1, a2, bb1, bb2, cross, err := t.linksBetween(d1, d2)
	if err != nil {
		return 0, err
	}
	a1.OccupiedTime = end
	a2.OccupiedTime = end
	if cross {
		bb1.OccupiedTime = end
		bb2.OccupiedTime = end
	}
	return end, nil
}

// Step zeroes every link's transient OccupiedTime (called once per slot).
func (t *Topology) Step() {
	for _, a := range t.areas {
		a.Backbone.Step()
		for _, l := range a.members {
			l.Step()
		}
	}
}

// AreaCount returns the number of areas in the topology.
func (t *Topology) AreaCount() int { return len(t.areas) }

// DeviceIDsInArea returns the device ids attached to areaID.
func (t *Topology) DeviceIDsInArea(areaID int) []int {
	if areaID < 0 || areaID >= len(t.areas) {
		return nil
	}
	return t.areas[areaID].DeviceIDs()
}
