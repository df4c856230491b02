package lofarcap

import (
	"net"
	"sync/atomic"
)

// PortState is the per-port record of §3: one per listening UDP socket,
// or the single pseudo-port (numbered 0) standing for process stdin.
//
// Per §9, packsSeen/packsDropped/bytesWritten/the beamformed fields are
// written only by the producer goroutine; the consumer and the signal
// supervisor only ever read them for reporting, so atomics (rather than a
// mutex) are enough to make those reads well-defined without slowing the
// producer's hot path.
type PortState struct {
	Port int
	Conn *net.UDPConn // nil in stdin mode

	packsSeen    atomic.Int64
	packsDropped atomic.Int64
	bytesWritten atomic.Int64

	beamformedGoodPacks      atomic.Int64
	beamformedFirstPackNo    atomic.Int64
	beamformedLastPackNo     atomic.Int64
	haveFirstPackNo          atomic.Bool
}

// PortSnapshot is a point-in-time copy of a PortState's counters, used to
// compute per-interval deltas (§4.5) without holding any lock across the
// whole statistics dump.
type PortSnapshot struct {
	Port                 int
	PacksSeen            int64
	PacksDropped         int64
	BytesWritten         int64
	BeamformedGoodPacks  int64
	BeamformedFirstPackNo int64
	BeamformedLastPackNo int64
}

// Snapshot takes a consistent-enough snapshot of the counters for
// reporting. Because each field is independently atomic, the snapshot may
// interleave with an in-flight producer update by at most one counter's
// worth of skew — acceptable for statistics, never for control decisions.
func (p *PortState) Snapshot() PortSnapshot {
	return PortSnapshot{
		Port:                  p.Port,
		PacksSeen:             p.packsSeen.Load(),
		PacksDropped:          p.packsDropped.Load(),
		BytesWritten:          p.bytesWritten.Load(),
		BeamformedGoodPacks:   p.beamformedGoodPacks.Load(),
		BeamformedFirstPackNo: p.beamformedFirstPackNo.Load(),
		BeamformedLastPackNo:  p.beamformedLastPackNo.Load(),
	}
}

func (p *PortState) recordSeen() {
	p.packsSeen.Add(1)
}

func (p *PortState) recordDropped() {
	p.packsDropped.Add(1)
}

func (p *PortState) recordWritten(n int) {
	p.bytesWritten.Add(int64(n))
}

func (p *PortState) recordBeamformed(packno int64, good bool) {
	if good {
		p.beamformedGoodPacks.Add(1)
	}
	if !p.haveFirstPackNo.Swap(true) {
		p.beamformedFirstPackNo.Store(packno)
	}
	p.beamformedLastPackNo.Store(packno)
}

// resetPerFile zeroes every counter that a final close reports and starts
// fresh, mirroring init_thisfilestat() in the ground truth this package is
// modeled on: once a file's statistics have been printed, the next file
// starts its accounting from zero rather than carrying cumulative totals
// forward.
func (p *PortState) resetPerFile() {
	p.packsSeen.Store(0)
	p.packsDropped.Store(0)
	p.bytesWritten.Store(0)
	p.beamformedGoodPacks.Store(0)
	p.beamformedFirstPackNo.Store(0)
	p.beamformedLastPackNo.Store(0)
	p.haveFirstPackNo.Store(false)
}

// Expected returns the number of beamformed packets the header sequence
// implies should have arrived: last - first + 1. It is only meaningful
// once at least one beamformed packet has been observed.
func (s PortSnapshot) Expected() int64 {
	if s.BeamformedLastPackNo == 0 && s.BeamformedFirstPackNo == 0 {
		return 0
	}
	return s.BeamformedLastPackNo - s.BeamformedFirstPackNo + 1
}

// Missed is expected-minus-seen, per §4.5.
func (s PortSnapshot) Missed() int64 {
	return s.Expected() - s.PacksSeen
}

// Written is seen-minus-dropped, per §4.5.
func (s PortSnapshot) Written() int64 {
	return s.PacksSeen - s.PacksDropped
}
