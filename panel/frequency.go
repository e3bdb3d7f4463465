package panel

import (
	"strconv"
	"time"
)

// InferFrequency guesses a calendar frequency label from sorted timestamps.
// Fixed spacings map to S, T, H, D and W (prefixed by a multiple when it is
// not one). Month, quarter and year steps map to MS, QS and AS when aligned
// to period starts and M, Q and A when aligned to period ends. Fewer than
// three timestamps or irregular spacing yield "".
func InferFrequency(times []time.Time) string {
	if len(times) < 3 {
		return ""
	}

	for _, cal := range []struct {
		months      int
		start, ends string
	}{
		{1, "MS", "M"},
		{3, "QS", "Q"},
		{12, "AS", "A"},
	} {
		if label := calendarLabel(times, cal.months, cal.start, cal.ends); label != "" {
			return label
		}
	}

	step := times[1].Sub(times[0])
	regular := step > 0
	for i := 2; i < len(times) && regular; i++ {
		regular = times[i].Sub(times[i-1]) == step
	}
	if regular {
		if label := fixedLabel(step); label != "" {
			return label
		}
	}
	return ""
}

func fixedLabel(step time.Duration) string {
	units := []struct {
		d     time.Duration
		label string
	}{
		{7 * 24 * time.Hour, "W"},
		{24 * time.Hour, "D"},
		{time.Hour, "H"},
		{time.Minute, "T"},
		{time.Second, "S"},
	}
	for _, u := range units {
		if step%u.d != 0 {
			continue
		}
		k := int64(step / u.d)
		if k == 1 {
			return u.label
		}
		return strconv.FormatInt(k, 10) + u.label
	}
	return ""
}

func calendarLabel(times []time.Time, months int, startLabel, endLabel string) string {
	starts, ends := true, true
	for i, t := range times {
		starts = starts && t.Day() == 1
		ends = ends && isMonthEnd(t)
		if i == 0 {
			continue
		}
		prev := times[i-1]
		gap := (t.Year()-prev.Year())*12 + int(t.Month()) - int(prev.Month())
		if gap != months {
			return ""
		}
	}
	switch {
	case starts:
		return startLabel
	case ends:
		return endLabel
	}
	return ""
}

func isMonthEnd(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}
