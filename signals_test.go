package lofarcap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSignalSupervisorHangupClosesFileAndContinues is end-to-end scenario
// 1 of §8's "testable properties": SIGHUP mid-run closes the current file
// cleanly and the session keeps running, then SIGTERM drains the buffer
// and exits. It drives runSignalSupervisor and runConsumer together,
// exactly the way Run wires them, rather than calling onHangup/
// onTerminalSignal directly.
func TestSignalSupervisorHangupClosesFileAndContinues(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sig")
	cfg := Config{Ports: []int{16011}, Out: out, PackLen: 128, BufSize: 1 << 20, MaxWrite: 4096}
	s := newTestSession(t, cfg)
	p := s.ports[0]

	for i := 0; i < 5; i++ {
		s.ingest(p, bytes.Repeat([]byte{1}, 128))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	supervisorDone := make(chan error, 1)
	go func() { supervisorDone <- s.runSignalSupervisor(ctx) }()

	consumerDone := make(chan error, 1)
	go func() { consumerDone <- s.runConsumer(ctx) }()

	// Let the consumer open the first file and drain everything ingested
	// so far, and let signal.Notify register, before raising SIGHUP.
	deadline := time.Now().Add(2 * time.Second)
	for (!s.fileIsOpen() || s.ring.Fill() > 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, s.fileIsOpen(), "first file never opened")
	require.EqualValues(t, 0, s.ring.Fill(), "ring never drained")
	firstFile := s.sink.filename

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))

	deadline = time.Now().Add(2 * time.Second)
	for s.fileIsOpen() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.False(t, s.fileIsOpen(), "SIGHUP did not close the current file")
	require.Equal(t, Running, s.Stopped(), "session did not resume Running after SIGHUP close")

	info, err := os.Stat(firstFile)
	require.NoError(t, err)
	require.EqualValues(t, 5*128, info.Size())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-consumerDone:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runConsumer did not exit after SIGTERM")
	}
	select {
	case err := <-supervisorDone:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runSignalSupervisor did not exit after SIGTERM")
	}
}
