// Package ringbuffer implements a single-producer, single-consumer byte
// FIFO backed by a shared-memory segment mapped twice into adjacent
// virtual address ranges. The double mapping means a writer can always
// hand back a contiguous window of up to Capacity()-Fill() bytes and a
// reader a contiguous window of up to Fill() bytes, with no wrap-around
// branch anywhere in the hot path.
package ringbuffer

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"unsafe"

	"github.com/fabiokung/shm"
	"golang.org/x/sys/unix"
)

// ErrAlloc is returned by Create when either virtual mapping fails.
type ErrAlloc struct {
	Op  string
	Err error
}

func (e *ErrAlloc) Error() string {
	return fmt.Sprintf("ringbuffer: %s: %v", e.Op, e.Err)
}

func (e *ErrAlloc) Unwrap() error { return e.Err }

// RingBuffer is the virtual (double-mapped) ring buffer of §4.1.
type RingBuffer struct {
	capacity int    // rounded up to a page multiple
	base     []byte // len == 2*capacity; base[k] and base[k+capacity] alias the same byte

	mu    sync.Mutex
	front int // oldest unread byte offset, 0 <= front < capacity
	rear  int // next write offset, 0 <= rear < capacity
	fill  int // bytes occupied, 0 <= fill <= capacity
}

func roundUpToPage(n int) int {
	page := os.Getpagesize()
	if n <= 0 {
		n = page
	}
	return ((n + page - 1) / page) * page
}

// Create allocates capacity = ceil(minSize/pagesize)*pagesize bytes of
// anonymous shared memory and maps it twice, back to back, into the
// calling process's address space. The shared-memory name is unlinked
// before Create returns, so the buffer never has a filesystem name
// visible to any other process once initialization completes.
func Create(minSize int) (rb *RingBuffer, err error) {
	capacity := roundUpToPage(minSize)

	name := fmt.Sprintf("/lofarcap-ring-%d-%d", os.Getpid(), rand.Uint32())
	f, err := shm.Open(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, &ErrAlloc{Op: "shm.Open", Err: err}
	}
	// Unlink as early as is safe: the fd keeps the backing object alive for
	// as long as we hold it or have it mapped, but no process can open this
	// name again by the time Create returns.
	defer func() {
		_ = shm.Unlink(name)
	}()
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Ftruncate(fd, int64(capacity)); err != nil {
		return nil, &ErrAlloc{Op: "ftruncate", Err: err}
	}

	// Reserve a contiguous 2*capacity virtual address range with no backing,
	// so we know both fixed mappings below will land adjacently.
	reservation, err := unix.Mmap(-1, 0, 2*capacity, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, &ErrAlloc{Op: "reserve", Err: err}
	}
	base := uintptr(unsafe.Pointer(&reservation[0]))

	if err := mmapFixed(base, uintptr(capacity), fd, 0); err != nil {
		_ = unix.Munmap(reservation)
		return nil, &ErrAlloc{Op: "mmap[0]", Err: err}
	}
	if err := mmapFixed(base+uintptr(capacity), uintptr(capacity), fd, 0); err != nil {
		_ = unix.Munmap(reservation)
		return nil, &ErrAlloc{Op: "mmap[1]", Err: err}
	}

	rb = &RingBuffer{
		capacity: capacity,
		base:     reservation,
	}
	return rb, nil
}

// mmapFixed re-maps the shared object backing fd, at offset off, onto the
// capacity bytes starting at the given virtual address, replacing the
// PROT_NONE reservation there. golang.org/x/sys/unix has no high-level
// helper that accepts a caller-chosen address, so this issues the mmap
// syscall directly with MAP_FIXED.
func mmapFixed(addr, length uintptr, fd int, off int64) error {
	const prot = unix.PROT_READ | unix.PROT_WRITE
	const flags = unix.MAP_SHARED | unix.MAP_FIXED
	r1, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length, uintptr(prot), uintptr(flags), uintptr(fd), uintptr(off))
	if errno != 0 {
		return errno
	}
	if r1 != addr {
		return fmt.Errorf("mmap landed at %#x, want fixed address %#x", r1, addr)
	}
	return nil
}

// Capacity returns the buffer's usable size in bytes.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// Fill returns the number of bytes currently enqueued.
func (rb *RingBuffer) Fill() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.fill
}

// WriteView returns a slice of exactly n bytes starting at the current
// rear pointer, into which the caller may copy a full record before
// calling CommitWrite. It returns nil if there is not enough room. It
// does not mutate buffer state.
func (rb *RingBuffer) WriteView(n int) []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.fill+n > rb.capacity {
		return nil
	}
	return rb.base[rb.rear : rb.rear+n : rb.rear+n]
}

// CommitWrite advances rear and fill after the caller has copied n bytes
// into the slice most recently returned by WriteView. n must not exceed
// capacity-fill as observed at the matching WriteView call.
func (rb *RingBuffer) CommitWrite(n int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.rear = (rb.rear + n) % rb.capacity
	rb.fill += n
}

// ReadView returns a slice of the Fill() bytes currently enqueued,
// starting at the current front pointer, or nil if the buffer is empty.
// It does not mutate buffer state.
func (rb *RingBuffer) ReadView() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.fill == 0 {
		return nil
	}
	return rb.base[rb.front : rb.front+rb.fill : rb.front+rb.fill]
}

// CommitRead advances front and shrinks fill after the caller has
// consumed (e.g. written to disk) n bytes from the slice most recently
// returned by ReadView. n must not exceed fill as observed at that call.
func (rb *RingBuffer) CommitRead(n int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.front = (rb.front + n) % rb.capacity
	rb.fill -= n
}

// Destroy unmaps the 2*capacity virtual window. The RingBuffer must not
// be used afterward.
func (rb *RingBuffer) Destroy() error {
	if rb.base == nil {
		return nil
	}
	err := unix.Munmap(rb.base)
	rb.base = nil
	return err
}
