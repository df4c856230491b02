package lofarcap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// portList renders a Config's ports for the filename template: the
// configured port numbers joined with "+", in the order given on the
// command line, or "stdin" for the port-0 pseudo-port.
func portList(ports []int) string {
	if len(ports) == 1 && ports[0] == 0 {
		return "stdin"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, "+")
}

// timestampTag formats t per §6: YYYY-MM-DDTHH:MM:SS.mmm, UTC, millisecond
// precision.
func timestampTag(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000")
}

// buildFilename implements the §6 filename template. base is the
// --out/-o value; hostname is injected for testability rather than read
// from os.Hostname() directly. num is the file sequence number, or a
// negative value for "no numbering". stamp is the base timestamp shared
// across every file of one numbered sequence, so a split run's files
// sort together.
func buildFilename(base string, ports []int, hostname, stamp string, num int, compress bool) string {
	if base == "/dev/null" {
		return base
	}
	name := fmt.Sprintf("%s_%s.%s.%s", base, portList(ports), hostname, stamp)
	if num >= 0 {
		name += fmt.Sprintf("_%04d", num)
	}
	if compress {
		name += ".zst"
	}
	return name
}

func hostnameOrUnknown() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}
