package lofarcap

import (
	"fmt"
	"time"
)

// Config holds every option from §6's CLI table plus the ambient/domain
// additions from SPEC_FULL.md §6. cmd/lofarcap is responsible for parsing
// flags and an optional config file into this struct; Validate() enforces
// the constraints the rest of the package relies on.
type Config struct {
	Ports    []int // UDP port numbers to listen on, or []int{0} for stdin
	Out      string
	PackLen  int  // fixed packet length; 0 = any size
	SizeHead bool // prepend 2-byte LE length to each stored record
	Check    bool // LOFAR header validation; forces PackLen=7824

	Timeout time.Duration // socket-readiness idle timeout

	Start    time.Time // zero means "now"
	End      time.Time // zero means "no end time"
	Duration time.Duration

	MaxFileSize int64 // split threshold is abs(MaxFileSize); sign alone selects per-file vs combined stats
	BufSize     int   // ring buffer minimum size
	MaxWrite    int   // consumer chunk upper bound

	Compress    bool
	CompCommand string // must contain exactly one %s for the filename
	PathOverride string

	Verbose bool

	// Ambient/domain additions (SPEC_FULL.md §6 supplement).
	LogFile     string
	StatusPort  int // 0 disables the ZMQ status feed
	FillHistory string
}

// CheckPackLen is the packet length §6 mandates whenever --check is set.
const CheckPackLen = 7824

const (
	minBufSize = 1e4
	maxBufSize = 1.6e10
	minMaxWrite = 1024
)

// Validate enforces the option constraints of §6 and resolves the
// --check/--len interaction. It must be called once, after flags and any
// config file have been merged, before the config is used to start a
// session.
func (c *Config) Validate() error {
	if len(c.Ports) == 0 {
		return fmt.Errorf("--ports must list at least one port, or 0 for stdin")
	}
	if len(c.Ports) > 1 {
		for _, p := range c.Ports {
			if p == 0 {
				return fmt.Errorf("--ports: port 0 (stdin) cannot be combined with other ports")
			}
		}
	}
	if c.Check {
		c.PackLen = CheckPackLen
	}
	if c.PackLen < 0 {
		return fmt.Errorf("--len must be >= 0, got %d", c.PackLen)
	}
	if c.BufSize < minBufSize || c.BufSize > maxBufSize {
		return fmt.Errorf("--bufsize must be in [%g, %g], got %d", minBufSize, maxBufSize, c.BufSize)
	}
	if c.MaxWrite <= minMaxWrite {
		return fmt.Errorf("--maxwrite must be > %d, got %d", minMaxWrite, c.MaxWrite)
	}
	if c.Compress && c.CompCommand == "" {
		return fmt.Errorf("--compress requires --compcommand")
	}
	if c.Compress && !containsVerb(c.CompCommand) {
		return fmt.Errorf("--compcommand %q must contain exactly one %%s for the filename", c.CompCommand)
	}
	if c.Duration != 0 && !c.End.IsZero() {
		return fmt.Errorf("--duration and --End are mutually exclusive")
	}
	return nil
}

func containsVerb(s string) bool {
	count := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '%' && s[i+1] == 's' {
			count++
		}
	}
	return count == 1
}
