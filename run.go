package lofarcap

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// statusInterval is how often the optional ZMQ status feed publishes a
// snapshot.
const statusInterval = 2 * time.Second

// Run starts a session end to end: the pre-session sleep for --Start,
// the signal supervisor, the producer, the consumer, and (if enabled)
// the status publisher, then waits for the session to wind down.
//
// Per §5's cancellation rule, once the consumer goroutine returns, the
// producer is given a one-second grace period to notice stopped==2 and
// exit on its own before Run force-cancels it.
func Run(ctx context.Context, s *Session) error {
	checkSocketBuffers(s.logger, s.cfg.BufSize)

	if !s.cfg.Start.IsZero() {
		if d := time.Until(s.cfg.Start); d > 0 {
			s.logger.Printf("sleeping %s until --Start", d)
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return s.runSignalSupervisor(gctx)
	})
	g.Go(func() error {
		return s.runStatusPublisher(gctx, s.cfg.StatusPort, statusInterval)
	})

	producerDone := make(chan error, 1)
	g.Go(func() error {
		err := s.runProducer(gctx)
		producerDone <- err
		return err
	})

	consumerErr := s.runConsumer(gctx)
	cancel()

	select {
	case <-producerDone:
	case <-time.After(time.Second):
		s.logger.Print("producer did not exit within the grace period; forcing shutdown")
		for _, p := range s.ports {
			if p.Conn != nil {
				_ = p.Conn.Close()
			}
		}
	}

	if err := g.Wait(); err != nil && consumerErr == nil {
		consumerErr = err
	}

	if s.cfg.FillHistory != "" {
		if err := s.fill.DumpNPY(s.cfg.FillHistory); err != nil {
			s.logger.Printf("fill history dump: %v", err)
		}
	}

	if err := s.ring.Destroy(); err != nil {
		s.logger.Printf("ring destroy: %v", err)
	}

	return consumerErr
}
