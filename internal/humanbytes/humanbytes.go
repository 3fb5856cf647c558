// Package humanbytes converts between byte counts and human-readable size
// strings. It backs the Max-Index-Size configuration knob and sizes logged
// during index fetches.
package humanbytes

import (
	"fmt"
	"strconv"
	"strings"
)

type unit struct {
	suffix string
	factor int64
}

// Ordered so that Parse matches the longest suffix first ("MiB" before
// "B") and Format picks the largest fitting unit.
var units = []unit{
	{"PiB", 1 << 50}, {"PB", 1e15}, {"P", 1 << 50},
	{"TiB", 1 << 40}, {"TB", 1e12}, {"T", 1 << 40},
	{"GiB", 1 << 30}, {"GB", 1e9}, {"G", 1 << 30},
	{"MiB", 1 << 20}, {"MB", 1e6}, {"M", 1 << 20},
	{"KiB", 1 << 10}, {"KB", 1e3}, {"K", 1 << 10},
	{"B", 1},
}

// Format renders b with two decimal places in the largest unit that fits,
// e.g. Format(5<<20) == "5.00MiB".
func Format(b int64) string {
	for _, u := range units {
		if u.factor == 1 || b < u.factor {
			continue
		}
		return fmt.Sprintf("%.2f%s", float64(b)/float64(u.factor), u.suffix)
	}
	return fmt.Sprintf("%dB", b)
}

// Parse converts strings like "64MiB", "10M" or "1048576" into a byte
// count. A bare number is taken as bytes.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("size %q: %v", s, err)
		}
		return n * u.factor, nil
	}
	return strconv.ParseInt(s, 0, 64)
}
