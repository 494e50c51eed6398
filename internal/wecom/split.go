package wecom

import "time"

// maxWindow is the upstream platform's per-request range ceiling (spec
// §4.2: "a single request window must not exceed 31 days").
const maxWindow = 31 * 24 * time.Hour

// windowChunkPause is how long callers pause between successive chunks of
// a split window (spec §4.2).
const windowChunkPause = 500 * time.Millisecond

// Window is one non-overlapping [Start, End] sub-range of a caller's
// logical sync window, in Unix seconds.
type Window struct {
	Start int64
	End   int64
}

// SplitWindow breaks [startUnix, endUnix] into chunks no longer than 31
// days, each separated from the next by a 1-second boundary (so chunk N's
// End and chunk N+1's Start never overlap). Callers are expected to sleep
// windowChunkPause between issuing requests for consecutive chunks; that
// pacing is not performed here since the caller also does per-chunk
// pagination and error handling between chunks.
func SplitWindow(startUnix, endUnix int64) []Window {
	if endUnix <= startUnix {
		return nil
	}
	maxSpan := int64(maxWindow.Seconds())

	var windows []Window
	for cur := startUnix; cur <= endUnix; {
		end := cur + maxSpan - 1
		if end > endUnix {
			end = endUnix
		}
		windows = append(windows, Window{Start: cur, End: end})
		cur = end + 1
	}
	return windows
}

// WindowChunkPause is exported so callers (the poller) use the same pacing
// constant rather than hardcoding it again.
func WindowChunkPause() time.Duration {
	return windowChunkPause
}
