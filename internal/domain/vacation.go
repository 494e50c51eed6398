package domain

import (
	"strconv"
	"time"
)

// The types below mirror the subset of the upstream approval-detail payload
// that §4.2/§4.3 say we parse: apply_data.contents[*].value.vacation. The
// upstream "info" object is otherwise opaque and is not modeled here.

type ApplyData struct {
	Contents []ApplyDataContent `json:"contents"`
}

type ApplyDataContent struct {
	Value ApplyDataValue `json:"value"`
}

type ApplyDataValue struct {
	Vacation *Vacation `json:"vacation,omitempty"`
}

type Vacation struct {
	Attendance Attendance `json:"attendance"`
}

type Attendance struct {
	DateRange DateRange  `json:"date_range"`
	SliceInfo *SliceInfo `json:"slice_info,omitempty"`
}

// DateRange's NewBegin/NewEnd are upstream Unix timestamps (seconds).
type DateRange struct {
	NewBegin int64  `json:"new_begin"`
	NewEnd   int64  `json:"new_end"`
	Type     string `json:"type"` // "wholeday" | "halfday"
}

type SliceInfo struct {
	DayItems []DayItem `json:"day_items"`
}

// DayItem's Duration is seconds; 43200 (12h) signals a half-day per §4.3.
type DayItem struct {
	Duration  int64 `json:"duration"`
	StartTime int64 `json:"start_time"`
}

const halfDaySeconds = 43200

// FindVacationAttendance locates the first content entry whose
// value.vacation exists, per §4.3 step 1. ok is false if no such entry
// exists, in which case the caller must skip the approval (logged, not an
// error).
func FindVacationAttendance(contents []ApplyDataContent) (att Attendance, ok bool) {
	for _, c := range contents {
		if c.Value.Vacation != nil {
			return c.Value.Vacation.Attendance, true
		}
	}
	return Attendance{}, false
}

// GenerateDateSlots derives the list of date-slot strings covered by att,
// per §4.3 steps 2-4. loc determines the local calendar used for the
// YYYY-M.D components of each slot (the deployment's configured timezone,
// never a hidden global); callers pass config.Location().
//
// Returns nil if no dates could be derived (empty day_items and an empty or
// inverted date_range) — the caller treats that the same as "no vacation
// block found" and skips the approval.
func GenerateDateSlots(att Attendance, loc *time.Location) []string {
	if att.SliceInfo != nil && len(att.SliceInfo.DayItems) > 0 {
		slots := make([]string, 0, len(att.SliceInfo.DayItems))
		for _, item := range att.SliceInfo.DayItems {
			t := time.Unix(item.StartTime, 0).In(loc)
			if item.Duration == halfDaySeconds {
				slots = append(slots, formatSlot(t, halfOf(t)))
			} else {
				slots = append(slots, formatSlot(t, ""))
			}
		}
		return slots
	}

	dr := att.DateRange
	if dr.NewEnd < dr.NewBegin || (dr.NewBegin == 0 && dr.NewEnd == 0) {
		return nil
	}

	beginT := time.Unix(dr.NewBegin, 0).In(loc)
	endT := time.Unix(dr.NewEnd, 0).In(loc)
	half := ""
	if dr.Type == "halfday" {
		half = halfOf(beginT)
	}

	var slots []string
	day := truncateToDate(beginT)
	last := truncateToDate(endT)
	for !day.After(last) {
		slots = append(slots, formatSlot(day, half))
		day = day.AddDate(0, 0, 1)
	}
	return slots
}

func halfOf(t time.Time) string {
	if t.Hour() < 12 {
		return "AM"
	}
	return "PM"
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// formatSlot renders the canonical date-slot string, per spec §3:
// "YYYY-M.D" for a full day, "YYYY-M.D (AM)"/"(PM)" for a half-day.
func formatSlot(t time.Time, half string) string {
	y, m, d := t.Date()
	base := strconv.Itoa(y) + "-" + strconv.Itoa(int(m)) + "." + strconv.Itoa(d)
	if half == "" {
		return base
	}
	return base + " (" + half + ")"
}
