package lofarcap

import (
	"fmt"

	"github.com/lorenzosaino/go-sysctl"
)

// checkSocketBuffers warns (but never fails setup) when the kernel's UDP
// receive buffer ceiling is smaller than the ring buffer itself, since in
// that case the kernel's own socket buffer — not this package's ring —
// becomes the first thing to drop packets under load.
func checkSocketBuffers(logger interface{ Printf(string, ...interface{}) }, bufSize int) {
	v, err := sysctl.Get("net.core.rmem_max")
	if err != nil {
		logger.Printf("could not read net.core.rmem_max: %v", err)
		return
	}
	var max int
	if _, err := fmt.Sscanf(v, "%d", &max); err != nil {
		return
	}
	if max < bufSize {
		logger.Printf("net.core.rmem_max=%d is smaller than --bufsize=%d; the kernel may drop datagrams before they reach the ring", max, bufSize)
	}
}
