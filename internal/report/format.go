package report

import "fmt"

// FormatHoursMinutes renders total seconds as H:MM for summary figures.
// Hours carry no leading zero; minutes are zero-padded.
func FormatHoursMinutes(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	return fmt.Sprintf("%d:%02d", h, m)
}

// FormatClock renders total seconds as H:MM:SS for live elapsed displays.
func FormatClock(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
