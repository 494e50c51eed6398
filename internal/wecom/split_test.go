package wecom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitWindow_SingleChunkUnder31Days(t *testing.T) {
	start := int64(1_700_000_000)
	end := start + int64((10 * 24 * time.Hour).Seconds())
	windows := SplitWindow(start, end)
	assert.Len(t, windows, 1)
	assert.Equal(t, start, windows[0].Start)
	assert.Equal(t, end, windows[0].End)
}

func TestSplitWindow_SplitsOver31Days(t *testing.T) {
	start := int64(1_700_000_000)
	end := start + int64((65 * 24 * time.Hour).Seconds())
	windows := SplitWindow(start, end)
	if assert.Len(t, windows, 3) {
		for i := 0; i < len(windows)-1; i++ {
			assert.Less(t, windows[i].End, windows[i+1].Start, "chunks must not overlap")
		}
		assert.Equal(t, end, windows[len(windows)-1].End)
		assert.Equal(t, start, windows[0].Start)
	}
}

func TestSplitWindow_MaxSpanPlusOneSecondYieldsExactlyTwoChunks(t *testing.T) {
	start := int64(1_700_000_000)
	end := start + int64(maxWindow.Seconds()) // maxSpan+1 seconds, inclusive
	windows := SplitWindow(start, end)
	if assert.Len(t, windows, 2) {
		assert.Equal(t, start, windows[0].Start)
		assert.Equal(t, windows[1].Start, windows[0].End+1, "no gap or overlap at the boundary")
		assert.Equal(t, end, windows[1].End)
	}
}

func TestSplitWindow_EmptyOrInvertedRangeYieldsNothing(t *testing.T) {
	assert.Nil(t, SplitWindow(100, 100))
	assert.Nil(t, SplitWindow(200, 100))
}
