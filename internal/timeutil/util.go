// Package timeutil provides utilities for working with time in a consistent
// manner. All time-related functions ensure the time is represented
// in UTC, helping to avoid issues related to time zone discrepancies.
package timeutil

import "time"

func TimestampNow() int {
	return int(Now().Unix())
}

// TimestampIn returns the timestamp secs seconds from now.
func TimestampIn(secs int) int {
	return TimestampNow() + secs
}

func Now() time.Time {
	return time.Now().UTC()
}
