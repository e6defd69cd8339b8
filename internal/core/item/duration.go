package item

import (
	"fmt"
	"time"
)

// FormatDuration renders d compactly, dropping zero trailing units:
// 45s, 1m30s, 2h, 1d2h3m.
func FormatDuration(d time.Duration) string {
	return formatSeconds(int64(d / time.Second))
}

func formatSeconds(s int64) string {
	units := []struct {
		size   int64
		suffix string
	}{
		{86400, "d"},
		{3600, "h"},
		{60, "m"},
	}
	for _, u := range units {
		if s >= u.size {
			q, r := s/u.size, s%u.size
			if r == 0 {
				return fmt.Sprintf("%d%s", q, u.suffix)
			}
			return fmt.Sprintf("%d%s%s", q, u.suffix, formatSeconds(r))
		}
	}
	return fmt.Sprintf("%ds", s)
}
