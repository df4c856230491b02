package lofarcap

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mugundhan1/lofarcap/ringbuffer"
)

var errTerminated = errors.New("lofarcap: session terminated")

// StopState is the tri-state (really four-state) shared control value of
// §3/§4.4: the one piece of mutable state the signal supervisor, the
// producer, and the consumer all coordinate on.
type StopState int32

const (
	// Running is the normal operating state.
	Running StopState = 0
	// EndFile means: close the current file, but keep listening for more
	// data (SIGHUP, idle timeout with sockets open).
	EndFile StopState = 1
	// Terminate means: drain the ring, close the file, and exit the process.
	Terminate StopState = 2
	// SplitNow means: close the current file and open a new one
	// immediately, without waiting for the ring to empty first.
	SplitNow StopState = -1
)

// Session is the process-wide state of §3: the one value the producer,
// consumer, and signal supervisor goroutines all hold a reference to.
type Session struct {
	cfg  Config
	ring *ringbuffer.RingBuffer
	ports []*PortState

	stopped atomic.Int32

	// dataAvail is signaled by the producer after every commit and by the
	// signal supervisor on every stopped transition; the consumer blocks on
	// it. spaceAvail is signaled by the consumer after every commit_read;
	// a producer blocked on stdin blocks on it. Buffered channels of size 1
	// stand in for condition variables here (§5): a signal that arrives
	// between a waiter's check and its receive is never lost, because the
	// send is non-blocking and leaves a token waiting in the channel.
	dataAvail  chan struct{}
	spaceAvail chan struct{}

	// sink is owned exclusively by the consumer goroutine; everything else
	// only reads it, and only for reporting.
	sink sinkState

	fill *FillTracker

	lastSnapshots []PortSnapshot
	lastReportAt  time.Time

	run    RunInfo
	logger *log.Logger

	stdinReader io.Reader // overridable for tests; defaults to os.Stdin
}

type sinkState struct {
	mu            sync.Mutex
	file          *os.File
	compressor    *compressorProc
	filename      string
	fileNum       int // -1 = no numbering
	baseStamp     string
	bytesThisFile int64
	bytesTotal    int64
}

// NewSession constructs a Session from a validated Config. It allocates
// the ring buffer and one PortState per configured port (or the single
// stdin pseudo-port numbered 0), but opens no sockets and no files.
func NewSession(cfg Config, logger *log.Logger) (*Session, error) {
	ring, err := ringbuffer.Create(cfg.BufSize)
	if err != nil {
		return nil, setupErr("ringbuffer.Create", err)
	}

	s := &Session{
		cfg:         cfg,
		ring:        ring,
		dataAvail:   make(chan struct{}, 1),
		spaceAvail:  make(chan struct{}, 1),
		run:         NewRunInfo(),
		logger:      logger,
		fill:        NewFillTracker(),
		stdinReader: os.Stdin,
	}
	s.sink.fileNum = -1

	for _, p := range cfg.Ports {
		s.ports = append(s.ports, &PortState{Port: p})
	}
	return s, nil
}

// Stopped returns the current control state.
func (s *Session) Stopped() StopState {
	return StopState(s.stopped.Load())
}

// setStopped unconditionally sets the control state and wakes the
// consumer (and any producer blocked in waitSpace, since a stopped
// transition also means "stop waiting").
func (s *Session) setStopped(v StopState) {
	s.stopped.Store(int32(v))
	notify(s.dataAvail)
	notify(s.spaceAvail)
}

// clearIfUnchanged implements step 5 of the consumer loop (§4.3): if
// stopped is still equal to old, reset it to Running; otherwise another
// goroutine raced ahead of us and we must keep its value.
func (s *Session) clearIfUnchanged(old StopState) {
	if s.stopped.CompareAndSwap(int32(old), int32(Running)) {
		return
	}
	cur := s.Stopped()
	s.logger.Printf("stopped status changed from %d to %d while consumer was closing a file", old, cur)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// waitData blocks the consumer until the ring is non-empty or stopped is
// anything other than Running, per §4.3's loop head and §5's description
// of data_available.
func (s *Session) waitData(ctx context.Context) {
	for {
		if s.ring.Fill() > 0 || s.Stopped() != Running {
			return
		}
		select {
		case <-s.dataAvail:
		case <-ctx.Done():
			return
		}
	}
}

// waitSpace blocks a stdin-mode producer until the ring has room for
// need bytes, or the context is done. Socket mode never calls this:
// per §4.2 sockets drop on a full ring rather than blocking.
func (s *Session) waitSpace(ctx context.Context, need int) error {
	for {
		if s.ring.Capacity()-s.ring.Fill() >= need {
			return nil
		}
		if s.Stopped() == Terminate {
			return errTerminated
		}
		select {
		case <-s.spaceAvail:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
