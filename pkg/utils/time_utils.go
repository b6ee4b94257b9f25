package utils

import "time"

// AgeInDays calculates the number of whole days between created and now.
// now is passed in rather than read from the clock so every age computed
// in one audit run shares the same reference instant.
func AgeInDays(created, now time.Time) int {
	return int(now.Sub(created).Hours() / 24)
}

// FormatDate formats a time as a plain date for table output
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
