// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import "time"

// filetimeEpochOffsetSeconds is the number of seconds between the Windows
// FILETIME epoch (1601-01-01 00:00:00 UTC) and the Unix epoch
// (1970-01-01 00:00:00 UTC).
const filetimeEpochOffsetSeconds = 11644473600

// filetimeTicksPerSecond is the number of 100-nanosecond FILETIME ticks
// in one second.
const filetimeTicksPerSecond = 10_000_000

// filetimeToTime converts a Windows FILETIME tick count (100ns intervals
// since 1601-01-01 UTC) to a time.Time. Values that would overflow the
// conversion saturate to the Unix epoch rather than panicking, matching
// the original implementation's saturating-arithmetic fallback.
func filetimeToTime(ticks uint64) time.Time {
	secs := int64(ticks/filetimeTicksPerSecond) - filetimeEpochOffsetSeconds
	nsecs := int64(ticks%filetimeTicksPerSecond) * 100
	t := time.Unix(secs, nsecs).UTC()
	if t.Year() < 1601 || t.Year() > 30827 {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// timeToFiletime converts a time.Time to a Windows FILETIME tick count.
// Times before the FILETIME epoch saturate to zero.
func timeToFiletime(t time.Time) uint64 {
	secs := t.Unix() + filetimeEpochOffsetSeconds
	if secs < 0 {
		return 0
	}
	nsecs := int64(t.Nanosecond())
	return uint64(secs)*filetimeTicksPerSecond + uint64(nsecs/100)
}
