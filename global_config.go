package lofarcap

import (
	"log"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
)

// BuildInfo holds compile-time information about the build, normally set
// by -ldflags from the Makefile.
type BuildInfo struct {
	Version string
	Githash string
	Date    string
	Host    string
}

// Build is a global holding compile-time information about the build.
var Build = BuildInfo{
	Version: "0.1.0",
	Githash: "no git hash computed",
	Date:    "no build date computed",
}

// RunInfo identifies one invocation of the recorder for correlating log
// lines, the status feed, and statistics dumps across however many files
// a session ends up splitting across.
type RunInfo struct {
	ID        string // ULID, sortable by creation time
	Host      string
	StartTime time.Time
}

// NewRunInfo constructs a RunInfo with a fresh run ID.
func NewRunInfo() RunInfo {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	now := time.Now()
	return RunInfo{
		ID:        ulid.Make().String(),
		Host:      host,
		StartTime: now,
	}
}

// StartTime is a global holding the time this package's init() ran.
var StartTime time.Time

// ProblemLogger logs diagnostics, session transitions, and statistics.
// cmd/lofarcap replaces this with a rotating-file logger when --logfile
// is given; the default writes to stderr.
var ProblemLogger *log.Logger

func init() {
	StartTime = time.Now()
	ProblemLogger = log.New(os.Stderr, "", log.LstdFlags)
}
