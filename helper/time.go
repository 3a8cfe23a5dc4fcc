package helper

import (
	"fmt"
	"time"
)

// FormatAge renders the elapsed time since a unix timestamp in a
// human-friendly form for CLI output.
func FormatAge(unixSeconds int64, now time.Time) string {
	if unixSeconds <= 0 {
		return "never"
	}
	d := now.Sub(time.Unix(unixSeconds, 0))
	if d < 0 {
		d = 0
	}

	switch {
	case d.Hours() >= 48:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	case d.Hours() >= 1:
		return fmt.Sprintf("%.1fh ago", d.Hours())
	case d.Minutes() >= 1:
		return fmt.Sprintf("%.1fm ago", d.Minutes())
	}
	return fmt.Sprintf("%ds ago", int(d.Seconds()))
}
