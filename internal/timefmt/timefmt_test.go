package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.June, 15, 16, 30, 0, 0, time.UTC)

func TestSummary(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"ten seconds", now.Add(-10 * time.Second), "Just now"},
		{"future", now.Add(time.Minute), "Just now"},
		{"earlier today", time.Date(2025, 6, 15, 9, 5, 0, 0, time.UTC), "09:05 AM"},
		{"yesterday", time.Date(2025, 6, 14, 14, 0, 0, 0, time.UTC), "Yesterday"},
		{"same year", time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC), "Mar 05"},
		{"older", time.Date(2023, 11, 20, 8, 0, 0, 0, time.UTC), "Nov 20, 2023"},
		{"zero", time.Time{}, ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Summary(tc.at, now), tc.name)
	}
}

func TestTranscript(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"ten seconds keeps clock", now.Add(-10 * time.Second), "04:29 PM"},
		{"yesterday", time.Date(2025, 6, 14, 14, 0, 0, 0, time.UTC), "Yesterday 02:00 PM"},
		{"same year", time.Date(2025, 3, 5, 15, 4, 0, 0, time.UTC), "Mar 5, 03:04 PM"},
		{"older", time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), "Dec 31, 2024, 11:59 PM"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Transcript(tc.at, now), tc.name)
	}
}

func TestYesterday_AcrossMonthBoundary(t *testing.T) {
	ref := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	at := time.Date(2025, 2, 28, 22, 15, 0, 0, time.UTC)
	require.Equal(t, "Yesterday", Summary(at, ref))
	require.Equal(t, "Yesterday 10:15 PM", Transcript(at, ref))
}

func TestRendersInLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ref := now.In(loc)
	// 22:00 UTC on the 14th is 01:00 on the 15th in UTC+3.
	at := time.Date(2025, 6, 14, 22, 0, 0, 0, time.UTC)
	require.Equal(t, "01:00 AM", Summary(at, ref))
}

func TestSince(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "In the future"},
		{30 * time.Second, "Just now"},
		{time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{time.Hour, "1 hour ago"},
		{23 * time.Hour, "23 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{29 * 24 * time.Hour, "29 days ago"},
		{30 * 24 * time.Hour, "1 month ago"},
		{300 * 24 * time.Hour, "10 months ago"},
		{365 * 24 * time.Hour, "1 year ago"},
		{800 * 24 * time.Hour, "2 years ago"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Since(now.Add(-tc.d), now), tc.d.String())
	}
}

func TestLastSeen(t *testing.T) {
	require.Equal(t, "", LastSeen(time.Time{}, now))
	require.Equal(t, "Just now", LastSeen(now.Add(-20*time.Second), now))
	require.Equal(t, "1 min ago", LastSeen(now.Add(-time.Minute), now))
	require.Equal(t, "12 mins ago", LastSeen(now.Add(-12*time.Minute), now))
	require.Equal(t, "1 hour ago", LastSeen(now.Add(-61*time.Minute), now))
	require.Equal(t, "5 hours ago", LastSeen(now.Add(-5*time.Hour), now))
	require.Equal(t, "Yesterday at 03:00 PM", LastSeen(now.Add(-(25*time.Hour+30*time.Minute)), now))
	require.Equal(t, "3 days ago", LastSeen(now.Add(-3*24*time.Hour), now))
	require.Equal(t, "Jun 1, 04:30 PM", LastSeen(now.Add(-14*24*time.Hour), now))
}

func TestClock(t *testing.T) {
	c := FixedClock(now)
	require.True(t, c.Now().Equal(now))

	loc := time.FixedZone("X", -2*3600)
	live := NewClock(loc)
	require.Equal(t, loc, live.Now().Location())

	var zero Clock
	require.Equal(t, time.UTC, zero.Now().Location())
}
