package library

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration as m:ss, e.g. "3:07". Negative values
// render as "0:00".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatMillis is FormatDuration for millisecond positions.
func FormatMillis(ms int64) string {
	return FormatDuration(time.Duration(ms) * time.Millisecond)
}
