package lofarcap

import (
	"bytes"
	"context"
	"encoding/binary"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

// buildHeaderBytes constructs a minimal 16-byte LOFAR header, matching
// the field layout of packets.Decode, for feeding through ingest() in
// tests without importing the packets package's internal encode helper.
func buildHeaderBytes(timestamp, sequence int32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(timestamp))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(sequence))
	return buf
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

// newTestSession builds a Session against a temp-file output base, with a
// ring sized generously unless the test overrides BufSize itself.
func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	if cfg.BufSize == 0 {
		cfg.BufSize = 1 << 20
	}
	if cfg.MaxWrite == 0 {
		cfg.MaxWrite = 1 << 16
	}
	s, err := NewSession(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.ring.Destroy() })
	return s
}

// TestStdinLossless is end-to-end scenario 5 of §8: N fixed-length
// records piped on stdin, then EOF, produce one file of N*L bytes with
// no drops.
func TestStdinLossless(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "cap")

	const recLen = 512
	const nrec = 3
	var input bytes.Buffer
	for i := 0; i < nrec; i++ {
		rec := bytes.Repeat([]byte{byte(i + 1)}, recLen)
		input.Write(rec)
	}

	cfg := Config{
		Ports:   []int{0},
		Out:     out,
		PackLen: recLen,
	}
	s := newTestSession(t, cfg)
	s.stdinReader = &input

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_ = s.runProducer(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Stopped() != Terminate && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, Terminate, s.Stopped(), "producer did not observe EOF in time")

	require.NoError(t, s.openSink(false))
	for i := 0; i < nrec; i++ {
		require.NoError(t, s.drainOnce())
	}

	// Snapshot before the final close, which resets per-file counters.
	snap := s.ports[0].Snapshot()
	require.EqualValues(t, nrec, snap.PacksSeen)
	require.EqualValues(t, 0, snap.PacksDropped)

	require.NoError(t, s.closeSink(true))

	data, err := os.ReadFile(s.sink.filename)
	require.NoError(t, err)
	require.Len(t, data, nrec*recLen)
}

// TestBufferOverrunDropsAndPreservesOrder is end-to-end scenario 2 of §8:
// a small ring under a fast producer drops some records but never tears
// one, and the written bytes are a prefix-preserving subsequence.
func TestBufferOverrunDropsAndPreservesOrder(t *testing.T) {
	cfg := Config{Ports: []int{16011}, Out: "/dev/null", PackLen: 128, BufSize: 1024, MaxWrite: 4096}
	s := newTestSession(t, cfg)
	p := s.ports[0]

	// Ingest far more records than the 1024-byte ring (8 records) can
	// hold before draining at all, modeling a consumer that has fallen
	// behind the producer.
	for i := 0; i < 200; i++ {
		rec := bytes.Repeat([]byte{byte(i % 256)}, 128)
		s.ingest(p, rec)
	}

	var writtenRecords [][]byte
	for s.ring.Fill() > 0 {
		view := s.ring.ReadView()
		n := len(view) - (len(view) % 128)
		if n == 0 {
			break
		}
		for off := 0; off < n; off += 128 {
			writtenRecords = append(writtenRecords, append([]byte{}, view[off:off+128]...))
		}
		s.ring.CommitRead(n)
	}

	snap := p.Snapshot()
	require.Greater(t, int(snap.PacksDropped), 0)
	require.EqualValues(t, snap.PacksSeen-snap.PacksDropped, len(writtenRecords),
		"counter/ring mismatch, snapshot was:\n%s", spew.Sdump(snap))

	for i, rec := range writtenRecords {
		for _, b := range rec {
			require.Equal(t, rec[0], b, "record %d is torn", i)
		}
	}
}

// TestBeamformedReconciliation is end-to-end scenario 3 of §8.
func TestBeamformedReconciliation(t *testing.T) {
	cfg := Config{Ports: []int{16011}, Out: "/dev/null", Check: true, BufSize: 1 << 20, MaxWrite: 4096}
	s := newTestSession(t, cfg)
	p := s.ports[0]

	const total = 100
	const gaps = 7
	skip := map[int]bool{10: true, 20: true, 30: true, 40: true, 50: true, 60: true, 70: true}
	require.Len(t, skip, gaps)

	for seq := 0; seq < total; seq++ {
		if skip[seq] {
			continue
		}
		s.ingest(p, buildHeaderBytes(1000, int32(seq*16)))
	}

	snap := p.Snapshot()
	require.EqualValues(t, total, snap.Expected())
	require.EqualValues(t, total-gaps, snap.PacksSeen)
	require.EqualValues(t, gaps, snap.Missed())
}

// TestSplitFiles is end-to-end scenario 4 of §8.
func TestSplitFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "split")
	cfg := Config{
		Ports:       []int{16011},
		Out:         out,
		PackLen:     1000,
		MaxFileSize: 100000,
		BufSize:     1 << 20,
		MaxWrite:    10000,
	}
	s := newTestSession(t, cfg)
	p := s.ports[0]

	for i := 0; i < 350; i++ {
		s.ingest(p, bytes.Repeat([]byte{1}, 1000))
	}

	require.NoError(t, s.openSink(false))
	for s.ring.Fill() > 0 {
		if s.sinkBytesThisFile() >= cfg.MaxFileSize {
			require.NoError(t, s.closeSink(false))
			require.NoError(t, s.openSink(true))
		}
		require.NoError(t, s.drainOnce())
	}
	require.NoError(t, s.closeSink(true))

	wantSizes := []int64{100000, 100000, 100000, 50000}
	for i, want := range wantSizes {
		name := buildFilename(out, cfg.Ports, hostnameOrUnknown(), s.sink.baseStamp, i, false)
		info, err := os.Stat(name)
		require.NoError(t, err, "file %d", i)
		require.Equal(t, want, info.Size(), "file %d", i)
	}
}

// TestSizeheadRoundTrip is end-to-end scenario 6 of §8.
func TestSizeheadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "vl")
	cfg := Config{Ports: []int{16011}, Out: out, SizeHead: true, BufSize: 1 << 20, MaxWrite: 1 << 20}
	s := newTestSession(t, cfg)
	p := s.ports[0]

	sizes := []int{100, 7824, 4096}
	for _, n := range sizes {
		s.ingest(p, bytes.Repeat([]byte{0xAB}, n))
	}

	require.NoError(t, s.openSink(false))
	for s.ring.Fill() > 0 {
		require.NoError(t, s.drainOnce())
	}
	require.NoError(t, s.closeSink(true))

	data, err := os.ReadFile(s.sink.filename)
	require.NoError(t, err)

	var want bytes.Buffer
	for _, n := range sizes {
		want.WriteByte(byte(n))
		want.WriteByte(byte(n >> 8))
		want.Write(bytes.Repeat([]byte{0xAB}, n))
	}
	require.Equal(t, want.Bytes(), data)
}
