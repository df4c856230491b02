package lofarcap

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParsePorts implements the §6 `--ports` grammar: a comma-separated list
// of port numbers, or the "KxN" shorthand for N consecutive ports
// starting at base port K, or the literal "0" meaning "read stdin
// instead of any socket". The base comes before the "x" and the count
// after it, matching the ground truth's own "31664x2" -> {31664,31665}
// usage.
func ParsePorts(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "0" {
		return []int{0}, nil
	}
	if i := strings.IndexAny(spec, "xX"); i > 0 {
		k, err := strconv.Atoi(spec[:i])
		if err != nil {
			return nil, fmt.Errorf("--ports: bad base port %q in %q", spec[:i], spec)
		}
		n, err := strconv.Atoi(spec[i+1:])
		if err != nil {
			return nil, fmt.Errorf("--ports: bad count %q in %q", spec[i+1:], spec)
		}
		if n <= 0 {
			return nil, fmt.Errorf("--ports: count must be positive in %q", spec)
		}
		ports := make([]int, n)
		for j := 0; j < n; j++ {
			ports[j] = k + j
		}
		return ports, nil
	}

	var ports []int
	for _, f := range strings.Split(spec, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		p, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("--ports: %q is not an integer: %w", f, err)
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("--ports: no ports given")
	}
	return ports, nil
}

// ParseTimeArg implements the §6 `--Start`/`--End` grammar: an ISO
// YYYY-MM-DDTHH:MM:SS timestamp (UTC) or a bare unix-seconds integer. An
// empty string means "unset" and returns the zero time.
func ParseTimeArg(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--Start/--End: cannot parse %q: %w", s, err)
	}
	return t.UTC(), nil
}
