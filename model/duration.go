package model

import (
	"fmt"
	"regexp"
	"strconv"
)

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// FormatDuration turns an ISO-8601 duration as returned by the YouTube API
// (PT1H2M3S) into a clock string: 1:02:03, or 2:03 below an hour.
func FormatDuration(iso string) string {
	m := isoDuration.FindStringSubmatch(iso)
	if m == nil || iso == "P" || iso == "PT" {
		return ""
	}

	var parts [4]int
	for i, s := range m[1:] {
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return ""
		}
		parts[i] = n
	}
	seconds := parts[0]*86400 + parts[1]*3600 + parts[2]*60 + parts[3]

	minutes, seconds := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
