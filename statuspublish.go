package lofarcap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// statusUpdate carries one message for the live status feed: a topic
// frame followed by a JSON-encoded payload frame, mirroring the
// two-frame tag+message convention of this package's status publisher.
type statusUpdate struct {
	tag     string
	message []byte
}

// PortStat is the JSON shape published on the status feed for one port.
type PortStat struct {
	Port         int   `json:"port"`
	PacksSeen    int64 `json:"packsSeen"`
	PacksDropped int64 `json:"packsDropped"`
	Written      int64 `json:"written"`
	BytesWritten int64 `json:"bytesWritten"`
	Expected     int64 `json:"expected,omitempty"`
	Missed       int64 `json:"missed,omitempty"`
	Good         int64 `json:"good,omitempty"`
}

// RunInfo published alongside the per-port stats so a subscriber can
// tell which run (and which ring fill state) a snapshot belongs to.
type statusSnapshot struct {
	Run      RunInfo    `json:"run"`
	FillMax  float64    `json:"fillMax"`
	FillMean float64    `json:"fillMean"`
	Ports    []PortStat `json:"ports"`
}

// runStatusPublisher publishes a JSON snapshot of the session's counters
// on a ZMQ PUB socket once per interval, until ctx is done. It returns
// nil immediately if statusPort is 0 (the feed is disabled), since the
// feed is an optional supplement, not part of the core pipeline.
func (s *Session) runStatusPublisher(ctx context.Context, statusPort int, interval time.Duration) error {
	if statusPort <= 0 {
		return nil
	}
	addr := fmt.Sprintf("tcp://*:%d", statusPort)
	pub, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return setupErr("zmq.NewSocket", err)
	}
	defer pub.Close()
	if err := pub.Bind(addr); err != nil {
		return setupErr("zmq bind status port", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			update, err := s.snapshot()
			if err != nil {
				s.logger.Printf("status snapshot: %v", err)
				continue
			}
			if _, err := pub.Send(update.tag, zmq.SNDMORE); err != nil {
				s.logger.Printf("status publish: %v", err)
				continue
			}
			if _, err := pub.SendBytes(update.message, 0); err != nil {
				s.logger.Printf("status publish: %v", err)
			}
		}
	}
}

// snapshot renders the current per-port and fill statistics as a
// statusUpdate ready to hand to runStatusPublisher.
func (s *Session) snapshot() (statusUpdate, error) {
	max, mean := s.fill.MaxMean()
	snap := statusSnapshot{Run: s.run, FillMax: max, FillMean: mean}
	for _, p := range s.ports {
		cur := p.Snapshot()
		ps := PortStat{
			Port:         cur.Port,
			PacksSeen:    cur.PacksSeen,
			PacksDropped: cur.PacksDropped,
			Written:      cur.Written(),
			BytesWritten: cur.BytesWritten,
		}
		if s.cfg.Check {
			ps.Expected = cur.Expected()
			ps.Missed = cur.Missed()
			ps.Good = cur.BeamformedGoodPacks
		}
		snap.Ports = append(snap.Ports, ps)
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return statusUpdate{}, err
	}
	return statusUpdate{tag: "lofarcap.status", message: body}, nil
}
