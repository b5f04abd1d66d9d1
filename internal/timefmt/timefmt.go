// Package timefmt renders message timestamps for chat clients.
//
// Every function takes the reference time explicitly and renders in the
// location of now, so the output is deterministic and testable. Two chat
// variants exist and differ on purpose: Summary (inbox rows) drops the clock
// time for anything older than yesterday, Transcript always keeps it.
package timefmt

import (
	"fmt"
	"time"
)

const (
	clockLayout       = "03:04 PM"
	summaryDayLayout  = "Jan 02"
	summaryYearLayout = "Jan 02, 2006"
	transcriptDay     = "Jan 2, 03:04 PM"
	transcriptYear    = "Jan 2, 2006, 03:04 PM"

	chatJustNow    = 15 * time.Second
	genericJustNow = time.Minute
)

// Clock yields the current time in a fixed location.
type Clock struct {
	Loc *time.Location
	now func() time.Time
}

// NewClock returns a Clock using time.Now in loc (UTC when loc is nil).
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Loc: loc, now: time.Now}
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return Clock{Loc: t.Location(), now: func() time.Time { return t }}
}

// Now returns the current time in the clock's location.
func (c Clock) Now() time.Time {
	loc := c.Loc
	if loc == nil {
		loc = time.UTC
	}
	if c.now == nil {
		return time.Now().In(loc)
	}
	return c.now().In(loc)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func isYesterday(t, now time.Time) bool {
	return sameDay(t, now.AddDate(0, 0, -1))
}

// Summary renders an inbox timestamp: "Just now" under 15 seconds, the clock
// time today, "Yesterday", "Jan 02" within the year, else "Jan 02, 2006".
// A zero t renders as "".
func Summary(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	if now.Sub(t) < chatJustNow {
		return "Just now"
	}
	switch {
	case sameDay(t, now):
		return t.Format(clockLayout)
	case isYesterday(t, now):
		return "Yesterday"
	case t.Year() == now.Year():
		return t.Format(summaryDayLayout)
	default:
		return t.Format(summaryYearLayout)
	}
}

// Transcript renders a per-message timestamp. Clock time is always present.
func Transcript(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	switch {
	case sameDay(t, now):
		return t.Format(clockLayout)
	case isYesterday(t, now):
		return "Yesterday " + t.Format(clockLayout)
	case t.Year() == now.Year():
		return t.Format(transcriptDay)
	default:
		return t.Format(transcriptYear)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// Since renders a generic relative age ("3 hours ago"). Months are 30 days
// and years 365 days.
func Since(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return "In the future"
	}
	secs := int(d / time.Second)
	mins := secs / 60
	hours := mins / 60
	days := hours / 24
	months := days / 30
	years := days / 365

	switch {
	case years > 0:
		return plural(years, "year")
	case months > 0:
		return plural(months, "month")
	case days > 0:
		return plural(days, "day")
	case hours > 0:
		return plural(hours, "hour")
	case mins > 0:
		return plural(mins, "minute")
	default:
		return "Just now"
	}
}

// LastSeen renders a presence label for an offline user. A zero t renders
// as "".
func LastSeen(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	d := now.Sub(t)
	if d < genericJustNow {
		return "Just now"
	}
	mins := int(d / time.Minute)
	hours := mins / 60
	days := hours / 24
	switch {
	case mins < 60:
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case hours < 24:
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case days == 1:
		return "Yesterday at " + t.Format(clockLayout)
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format(transcriptDay)
	}
}
