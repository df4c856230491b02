package lofarcap

import (
	"fmt"
	"strings"
	"time"
)

// statsLine renders the statistics described in §4.5: cumulative and
// per-interval deltas for every port, plus fill-level statistics. final
// distinguishes a periodic progress line from the fuller report §4.3
// emits when a file closes.
//
// The source this package is modeled on sometimes updates the retained
// "last" snapshot only on one branch of the beamformed/non-beamformed
// split (§9's first open question); this implementation always updates
// it, unconditionally, right after rendering — the simplest policy that
// is still internally consistent.
func (s *Session) statsLine(final bool) string {
	now := time.Now()
	elapsed := now.Sub(s.lastReportAt)
	if s.lastReportAt.IsZero() {
		elapsed = 0
	}

	var b strings.Builder
	max, mean := s.fill.MaxMean()
	fmt.Fprintf(&b, "fill: max=%.3f mean=%.3f capacity=%d\n", max, mean, s.ring.Capacity())

	for i, p := range s.ports {
		cur := p.Snapshot()
		var prev PortSnapshot
		if i < len(s.lastSnapshots) {
			prev = s.lastSnapshots[i]
		}
		fmt.Fprintf(&b, "port %d: seen=%d dropped=%d written=%d volume=%d",
			p.Port, cur.PacksSeen, cur.PacksDropped, cur.Written(), cur.BytesWritten)
		if s.cfg.Check {
			fmt.Fprintf(&b, " expected=%d missed=%d good=%d",
				cur.Expected(), cur.Missed(), cur.BeamformedGoodPacks)
		}
		if elapsed > 0 {
			fmt.Fprintf(&b, " (interval: seen=%d dropped=%d)",
				cur.PacksSeen-prev.PacksSeen, cur.PacksDropped-prev.PacksDropped)
		}
		b.WriteByte('\n')
	}

	s.lastSnapshots = make([]PortSnapshot, len(s.ports))
	for i, p := range s.ports {
		s.lastSnapshots[i] = p.Snapshot()
	}
	s.lastReportAt = now

	if final {
		b.WriteString("-- file closed --\n")
	}
	return b.String()
}
