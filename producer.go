package lofarcap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mugundhan1/lofarcap/packets"
)

// maxDatagram is the staging buffer size for a single receive. UDP
// payloads never exceed 65507 bytes, so this is never exceeded by a
// well-formed datagram; a read that fills it completely is treated as
// the fatal programming error §4.2 calls out.
const maxDatagram = 65536

const progressMilestone = 1 << 30 // ~1 GB, per §4.2

// datagram is one receive result handed from a per-socket reader
// goroutine to the single producer loop that owns ring-buffer writes.
type datagram struct {
	portIdx int
	n       int
	err     error
	buf     []byte
}

// runProducer is the §4.2 producer: it owns every socket (or stdin) and
// is the sole goroutine that calls WriteView/CommitWrite, satisfying the
// ring buffer's single-producer requirement even though multiple
// goroutines may block in socket reads concurrently.
func (s *Session) runProducer(ctx context.Context) error {
	if len(s.cfg.Ports) == 1 && s.cfg.Ports[0] == 0 {
		return s.runStdinProducer(ctx)
	}
	return s.runSocketProducer(ctx)
}

func (s *Session) runSocketProducer(ctx context.Context) error {
	for _, p := range s.ports {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: p.Port})
		if err != nil {
			return setupErr(fmt.Sprintf("listen udp :%d", p.Port), err)
		}
		p.Conn = conn
	}
	defer func() {
		for _, p := range s.ports {
			if p.Conn != nil {
				_ = p.Conn.Close()
			}
		}
	}()

	results := make(chan datagram, len(s.ports))
	for i, p := range s.ports {
		go readLoop(i, p.Conn, results)
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sinceProgress := int64(0)

	for {
		if s.Stopped() == Terminate {
			return nil
		}

		timer := time.NewTimer(timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.onIdleTimeout(true, s.fileIsOpen())
			continue
		case d := <-results:
			timer.Stop()
			if s.Stopped() == Terminate {
				continue // discard: stopped==2 observed after the datagram arrived
			}
			if d.err != nil {
				if isTimeoutOrClosed(d.err) {
					continue
				}
				return fatalErr("recv", d.err)
			}
			p := s.ports[d.portIdx]
			n := d.n
			if n >= maxDatagram {
				return fatalErr("recv", fmt.Errorf("datagram filled the %d-byte staging buffer on port %d", maxDatagram, p.Port))
			}
			s.ingest(p, d.buf[:n])
			sinceProgress += int64(n)
			if sinceProgress >= progressMilestone {
				sinceProgress = 0
				s.logger.Print(s.statsLine(false))
			}
		}
	}
}

func readLoop(idx int, conn *net.UDPConn, out chan<- datagram) {
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		out <- datagram{portIdx: idx, n: n, err: err, buf: buf}
		if err != nil {
			return // the socket closed (stopped==2) or failed; the producer loop saw our last result
		}
	}
}

func isTimeoutOrClosed(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}

// runStdinProducer implements §4.2's stdin mode: one pseudo-port numbered
// 0, fixed-length reads, and a block-for-space discipline since stdin
// data is never dropped.
func (s *Session) runStdinProducer(ctx context.Context) error {
	p := s.ports[0]
	n := s.cfg.PackLen
	if n <= 0 {
		return setupErr("stdin mode", fmt.Errorf("--len must be > 0 when --ports 0"))
	}
	buf := make([]byte, n)
	sinceProgress := int64(0)

	for {
		if s.Stopped() == Terminate {
			return nil
		}
		width := n
		if s.cfg.SizeHead {
			width += 2
		}
		if err := s.waitSpace(ctx, width); err != nil {
			return nil
		}

		read, err := io.ReadFull(s.stdin(), buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			s.onIdleTimeout(false, s.fileIsOpen())
			if read == 0 {
				continue
			}
		} else if err != nil {
			s.logger.Printf("stdin read error treated as idle: %v", err)
			s.onIdleTimeout(false, s.fileIsOpen())
			continue
		}
		if read != n {
			continue
		}
		s.ingest(p, buf[:read])

		sinceProgress += int64(read)
		if sinceProgress >= progressMilestone {
			sinceProgress = 0
			s.logger.Print(s.statsLine(false))
		}
	}
}

// ingest applies §4.2's acceptance policy and enqueues one record.
func (s *Session) ingest(p *PortState, payload []byte) {
	if s.cfg.PackLen > 0 && len(payload) != s.cfg.PackLen {
		s.logger.Printf("port %d: discarding %d-byte datagram, expected %d", p.Port, len(payload), s.cfg.PackLen)
		return
	}

	p.recordSeen()

	if s.cfg.Check {
		if h, err := packets.Decode(payload); err == nil {
			p.recordBeamformed(h.PackNo(), h.Good())
		}
	}

	width := len(payload)
	if s.cfg.SizeHead {
		width += 2
	}

	// Sampled over every enqueue attempt, not just successful ones, per
	// §4.2's "mean fill fraction over all enqueue attempts" — a run that
	// is dropping packets because the ring stays near-full must show that
	// in the fill statistics too.
	frac := float64(s.ring.Fill()) / float64(s.ring.Capacity())
	s.fill.Observe(frac)

	view := s.ring.WriteView(width)
	if view == nil {
		p.recordDropped()
		return
	}
	if s.cfg.SizeHead {
		binary.LittleEndian.PutUint16(view[:2], uint16(len(payload)))
		copy(view[2:], payload)
	} else {
		copy(view, payload)
	}
	s.ring.CommitWrite(width)
	p.recordWritten(width)

	notify(s.dataAvail)
}

func (s *Session) fileIsOpen() bool {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	return s.sink.file != nil || s.sink.compressor != nil
}

func (s *Session) stdin() io.Reader {
	return s.stdinReader
}
