package lofarcap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// sinkWriter is whatever the consumer is currently writing to: a plain
// file, or a compressor subprocess's stdin.
type sinkWriter interface {
	io.Writer
	Close() error
}

// runConsumer is the §4.3 consumer: the sole goroutine that opens,
// writes, and closes the output sink.
func (s *Session) runConsumer(ctx context.Context) error {
	for {
		s.waitData(ctx)
		if ctx.Err() != nil {
			return nil
		}

		old := s.Stopped()
		ms := old

		// 1. File-size split. The threshold is the magnitude of MaxFileSize;
		// its sign only selects perFileStats() (step below), independently.
		if ms == Running && s.splitThreshold() > 0 && s.sinkBytesThisFile() >= s.splitThreshold() {
			ms = SplitNow
		}

		// 2. File close decision.
		open := s.fileIsOpen()
		closeNow := (ms == Terminate && s.ring.Fill() == 0) || ms == EndFile || ms == SplitNow
		if open && closeNow {
			final := ms != SplitNow || s.perFileStats()
			if err := s.closeSink(final); err != nil {
				s.logger.Printf("close sink: %v", err)
			}
		}

		// 3. Terminate.
		if ms == Terminate && s.ring.Fill() == 0 {
			return nil
		}

		// 4. Reopen (split).
		if ms == SplitNow {
			if err := s.openSink(true); err != nil {
				return fatalErr("open split file", err)
			}
		}

		// 5. Clear.
		if ms != Terminate {
			s.clearIfUnchanged(old)
		}

		// 6. Drain.
		if s.ring.Fill() > 0 {
			if !s.fileIsOpen() {
				if err := s.openSink(false); err != nil {
					return fatalErr("open file", err)
				}
			}
			if err := s.drainOnce(); err != nil {
				return fatalErr("write", err)
			}
		}
	}
}

// drainOnce writes up to maxwrite bytes (rounded down to a whole record
// when packlen is fixed) from the ring to the current sink.
func (s *Session) drainOnce() error {
	view := s.ring.ReadView()
	if view == nil {
		return nil
	}
	n := len(view)
	if n > s.cfg.MaxWrite {
		n = s.cfg.MaxWrite
	}
	if s.cfg.PackLen > 0 {
		width := s.cfg.PackLen
		if s.cfg.SizeHead {
			width += 2
		}
		n -= n % width
		if n == 0 {
			return nil
		}
	}

	s.sink.mu.Lock()
	w := s.currentWriter()
	s.sink.mu.Unlock()
	if w == nil {
		return fmt.Errorf("drain with no sink open")
	}
	written, err := w.Write(view[:n])
	if err != nil {
		return err
	}

	s.ring.CommitRead(written)
	s.sink.mu.Lock()
	s.sink.bytesThisFile += int64(written)
	s.sink.bytesTotal += int64(written)
	s.sink.mu.Unlock()

	notify(s.spaceAvail)
	return nil
}

func (s *Session) currentWriter() sinkWriter {
	if s.sink.compressor != nil {
		return s.sink.compressor
	}
	if s.sink.file != nil {
		return s.sink.file
	}
	return nil
}

func (s *Session) sinkBytesThisFile() int64 {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	return s.sink.bytesThisFile
}

func (s *Session) perFileStats() bool {
	return s.cfg.MaxFileSize < 0
}

// splitThreshold is the magnitude of cfg.MaxFileSize: the sign only
// selects perFileStats, per spec §6's "sign selects per-file vs combined
// stats" and the ground truth's stat_per_splitfile = maxfilesize>0 followed
// by maxfilesize = abs(maxfilesize) before ever comparing against bytes
// written so far.
func (s *Session) splitThreshold() int64 {
	if s.cfg.MaxFileSize < 0 {
		return -s.cfg.MaxFileSize
	}
	return s.cfg.MaxFileSize
}

// openSink opens the next output file (and, if --compress, its
// compressor pipe), following the numbering and base-timestamp rules of
// §4.3 step 4 and §6's filename template.
func (s *Session) openSink(split bool) error {
	s.sink.mu.Lock()
	numbered := s.cfg.MaxFileSize != 0
	if s.sink.baseStamp == "" || !split {
		s.sink.baseStamp = timestampTag(time.Now())
		if numbered {
			s.sink.fileNum = 0
		} else {
			s.sink.fileNum = -1
		}
	} else if numbered {
		s.sink.fileNum++
	}
	num := s.sink.fileNum
	stamp := s.sink.baseStamp
	s.sink.mu.Unlock()

	name := buildFilename(s.cfg.Out, s.cfg.Ports, hostnameOrUnknown(), stamp, num, s.cfg.Compress)

	var f *os.File
	var err error
	if name == "/dev/null" {
		f, err = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	} else {
		f, err = os.Create(name)
	}
	if err != nil {
		return setupErr("create output file", err)
	}

	var comp *compressorProc
	if s.cfg.Compress {
		comp, err = startCompressor(s.cfg.CompCommand, name)
		if err != nil {
			_ = f.Close()
			return err
		}
	}

	s.sink.mu.Lock()
	s.sink.file = f
	s.sink.compressor = comp
	s.sink.filename = name
	s.sink.bytesThisFile = 0
	s.sink.mu.Unlock()

	s.logger.Printf("opened %s", name)
	return nil
}

// closeSink closes whatever is currently open. If final is true it also
// logs the §4.3/§4.5 statistics and resets per-file counters.
func (s *Session) closeSink(final bool) error {
	s.sink.mu.Lock()
	comp := s.sink.compressor
	f := s.sink.file
	name := s.sink.filename
	s.sink.compressor = nil
	s.sink.file = nil
	s.sink.mu.Unlock()

	var firstErr error
	if comp != nil {
		if err := comp.Close(); err != nil {
			firstErr = err
		}
	}
	if f != nil {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if final {
		if s.cfg.Compress {
			if info, statErr := os.Stat(name); statErr == nil {
				s.logger.Printf("compressed size of %s: %d bytes", name, info.Size())
			} else {
				s.logger.Printf("stat compressed output %s: %v", name, statErr)
			}
		}
		s.logger.Printf("closed %s\n%s", name, s.statsLine(true))
		s.sink.mu.Lock()
		s.sink.bytesThisFile = 0
		s.sink.mu.Unlock()
		for _, p := range s.ports {
			p.resetPerFile()
		}
		s.lastSnapshots = nil
	}
	return firstErr
}
