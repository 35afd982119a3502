package quota

import "time"

// Calendar records which weekdays are freeplay (no quota enforced) and
// which weekday opens the weekend, forfeiting accumulated rollover.
type Calendar struct {
	freeplay        [7]bool
	weekendStart    time.Weekday
	hasWeekendStart bool
}

// NewCalendar builds a calendar from the freeplay weekdays. weekendStart is
// ignored unless it is a freeplay day following a quota day; pass -1 for
// none.
func NewCalendar(freeplay []time.Weekday, weekendStart time.Weekday) Calendar {
	var c Calendar
	for _, wd := range freeplay {
		if wd >= time.Sunday && wd <= time.Saturday {
			c.freeplay[wd] = true
		}
	}
	if weekendStart >= time.Sunday && weekendStart <= time.Saturday && c.freeplay[weekendStart] && !c.freeplay[(weekendStart+6)%7] {
		c.weekendStart = weekendStart
		c.hasWeekendStart = true
	}
	return c
}

// WeekendCalendar is the default Saturday/Sunday freeplay calendar.
func WeekendCalendar() Calendar {
	return NewCalendar([]time.Weekday{time.Saturday, time.Sunday}, time.Saturday)
}

// IsFreeplay reports whether wd is an unlimited-play day.
func (c Calendar) IsFreeplay(wd time.Weekday) bool {
	return c.freeplay[wd]
}

// IsWeekendStart reports whether wd is the designated first freeplay day.
func (c Calendar) IsWeekendStart(wd time.Weekday) bool {
	return c.hasWeekendStart && c.weekendStart == wd
}

// FreeplayDays lists the freeplay weekdays from Sunday.
func (c Calendar) FreeplayDays() []time.Weekday {
	var days []time.Weekday
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if c.freeplay[wd] {
			days = append(days, wd)
		}
	}
	return days
}
