package ringbuffer

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateRoundsUpToPage(t *testing.T) {
	rb, err := Create(1)
	require.NoError(t, err)
	defer rb.Destroy()
	require.Equal(t, os.Getpagesize(), rb.Capacity())

	rb2, err := Create(os.Getpagesize() + 1)
	require.NoError(t, err)
	defer rb2.Destroy()
	require.Equal(t, 2*os.Getpagesize(), rb2.Capacity())
}

func TestWriteReadRoundTrip(t *testing.T) {
	rb, err := Create(8192)
	require.NoError(t, err)
	defer rb.Destroy()

	msg := []byte("the quick brown fox jumps over the lazy dog")
	view := rb.WriteView(len(msg))
	require.NotNil(t, view)
	copy(view, msg)
	rb.CommitWrite(len(msg))
	require.Equal(t, len(msg), rb.Fill())

	out := rb.ReadView()
	require.Equal(t, msg, out)
	rb.CommitRead(len(out))
	require.Equal(t, 0, rb.Fill())
}

// TestDoubleMapIdentity verifies §4.1's core invariant: the address window
// [base, base+2*capacity) returns the same bytes as [base+k*capacity, ...)
// for k in {0,1}, for every offset, after an arbitrary legal write.
func TestDoubleMapIdentity(t *testing.T) {
	rb, err := Create(8192)
	require.NoError(t, err)
	defer rb.Destroy()
	cap := rb.Capacity()

	for i := 0; i < cap; i++ {
		rb.base[i] = byte(i)
	}
	for i := 0; i < cap; i++ {
		require.Equal(t, rb.base[i], rb.base[i+cap], "mismatch at offset %d", i)
	}

	// Write through the public API, straddling the wrap point, and check
	// the alias holds for the freshly written bytes too.
	rb.rear = cap - 16
	view := rb.WriteView(32)
	require.NotNil(t, view)
	for i := range view {
		view[i] = byte(0xA0 + i)
	}
	rb.CommitWrite(32)
	for i := 0; i < cap; i++ {
		require.Equal(t, rb.base[i], rb.base[i+cap], "mismatch at offset %d after wrap write", i)
	}
}

// TestFillInvariant is the property test required by §8: for random
// interleavings of writes and reads, fill = sum(writes) - sum(reads) mod
// capacity, bytes produced equal bytes consumed, and ordering is preserved.
func TestFillInvariant(t *testing.T) {
	rb, err := Create(16384)
	require.NoError(t, err)
	defer rb.Destroy()

	rng := rand.New(rand.NewSource(1))
	var written, read []byte
	var nextByte byte

	for i := 0; i < 5000; i++ {
		if rng.Intn(2) == 0 {
			n := 1 + rng.Intn(64)
			view := rb.WriteView(n)
			if view == nil {
				continue // benign drop, matches producer's acceptance policy
			}
			for j := 0; j < n; j++ {
				view[j] = nextByte
				written = append(written, nextByte)
				nextByte++
			}
			rb.CommitWrite(n)
		} else {
			view := rb.ReadView()
			if view == nil {
				continue
			}
			n := 1 + rng.Intn(len(view))
			chunk := append([]byte{}, view[:n]...)
			read = append(read, chunk...)
			rb.CommitRead(n)
		}
		require.Equal(t, len(written)-len(read), rb.Fill())
	}

	// Drain whatever remains so the full written stream is accounted for.
	for rb.Fill() > 0 {
		view := rb.ReadView()
		read = append(read, view...)
		rb.CommitRead(len(view))
	}
	require.Equal(t, written, read)
}

func TestWriteViewNilWhenFull(t *testing.T) {
	rb, err := Create(4096)
	require.NoError(t, err)
	defer rb.Destroy()

	view := rb.WriteView(rb.Capacity())
	require.NotNil(t, view)
	rb.CommitWrite(rb.Capacity())

	require.Nil(t, rb.WriteView(1))
	require.Equal(t, rb.Capacity(), rb.Fill())
}
