package config

import (
	"fmt"
	"strconv"
	"strings"
)

// partSizeUnits maps the size suffixes UPLOAD_MAX_PART_SIZE accepts to
// their byte multipliers. Binary suffixes (Ki/Mi/Gi) scale by 1024,
// decimal ones (K/M/G, KB/MB/GB) by 1000; a bare number is bytes.
var partSizeUnits = map[string]int64{
	"":    1,
	"b":   1,
	"k":   1000,
	"kb":  1000,
	"m":   1000 * 1000,
	"mb":  1000 * 1000,
	"g":   1000 * 1000 * 1000,
	"gb":  1000 * 1000 * 1000,
	"ki":  1 << 10,
	"kib": 1 << 10,
	"mi":  1 << 20,
	"mib": 1 << 20,
	"gi":  1 << 30,
	"gib": 1 << 30,
}

// parsePartSize turns a human size string like "64Mi", "8MB", or "8388608"
// into a byte count.
func parsePartSize(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("part size is empty")
	}

	split := len(trimmed)
	for split > 0 {
		c := trimmed[split-1]
		if c >= '0' && c <= '9' {
			break
		}
		split--
	}

	digits := strings.TrimSpace(trimmed[:split])
	suffix := strings.ToLower(strings.TrimSpace(trimmed[split:]))

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid part size number %q", s)
	}

	unit, ok := partSizeUnits[suffix]
	if !ok {
		return 0, fmt.Errorf("unknown part size unit %q", suffix)
	}
	if unit != 1 && n > (1<<62)/unit {
		return 0, fmt.Errorf("part size %q overflows", s)
	}

	return n * unit, nil
}
