package store

import (
	"fmt"
	"time"
)

// FormatSize renders a byte count with one decimal place, dividing by
// 1024 through B, KB, MB, GB, TB; anything beyond TB reads as PB.
func FormatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f PB", size)
}

// RelativeTime renders how long ago t was relative to now, switching to
// an absolute short date past 30 days.
func RelativeTime(t, now time.Time) string {
	secs := now.Sub(t).Seconds()
	switch {
	case secs < 60:
		return "just now"
	case secs < 3600:
		return plural(int(secs/60), "minute")
	case secs < 86400:
		return plural(int(secs/3600), "hour")
	case secs < 604800:
		return plural(int(secs/86400), "day")
	case secs < 2592000:
		return plural(int(secs/604800), "week")
	default:
		return t.Format("Jan 02, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
