package content

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIST(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 19800)
	}
	return loc
}

func TestDefaultContent(t *testing.T) {
	loc := mustIST(t)
	c, err := Default(loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 12, 19, 10, 0, 0, 0, loc).Unix(), c.WeddingDate.Unix())
	assert.Equal(t, "November 15, 2026", c.RSVPDeadline)
	assert.Equal(t, time.Date(2026, 11, 15, 23, 59, 59, 0, loc).Unix(), c.RSVPDeadlineAt.Unix())

	require.Len(t, c.Schedule, 4)
	assert.Equal(t, "oorukuduva", c.Schedule[0].ID)
	assert.Equal(t, []string{"1-Oorukuduva.jpeg", "1b-lamp.jpeg"}, c.Schedule[0].Photos)
	assert.Equal(t, time.Date(2026, 12, 20, 16, 0, 0, 0, loc).Unix(), c.Schedule[3].Start.Unix())
	assert.NotNil(t, c.Schedule[3].Photos)

	assert.Len(t, c.Stays, 7)
	assert.Equal(t, "Federation of Kodava Samaja", c.Venue.Name)
	assert.Len(t, c.Venue.Facts, 6)
	assert.Equal(t, []string{"Veg", "Non-Veg"}, c.RSVPOptions.Meal)

	alerts := c.Alerts()
	require.Len(t, alerts, 3)
	assert.Equal(t, "Book-roms", alerts[0].ID)
	assert.True(t, alerts[0].Urgent)
	assert.False(t, alerts[1].Urgent)

	alerts[0].ID = "changed"
	assert.Equal(t, "Book-roms", c.Alerts()[0].ID)
}

func TestParseRejectsBadSchedule(t *testing.T) {
	_, err := Parse([]byte("wedding_date: \"2026-12-19T10:00:00\"\nschedule:\n  - title: x\n"), nil)
	assert.Error(t, err)

	_, err = Parse([]byte("wedding_date: \"soon\"\n"), nil)
	assert.Error(t, err)

	dup := "wedding_date: \"2026-12-19T10:00:00\"\nschedule:\n" +
		"  - {id: a, start: \"2026-12-19T10:00:00\"}\n" +
		"  - {id: a, start: \"2026-12-19T11:00:00\"}\n"
	_, err = Parse([]byte(dup), nil)
	assert.Error(t, err)
}

func TestCountdownTo(t *testing.T) {
	target := time.Date(2026, 12, 19, 10, 0, 0, 0, time.UTC)

	got := CountdownTo(target, target.Add(-(2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second + 500*time.Millisecond)))
	assert.Equal(t, Countdown{Days: 2, Hours: 3, Minutes: 4, Seconds: 5}, got)

	assert.Equal(t, Countdown{Done: true}, CountdownTo(target, target))
	assert.Equal(t, Countdown{Done: true}, CountdownTo(target, target.Add(time.Hour)))
}

func TestScheduleCalendar(t *testing.T) {
	c, err := Default(mustIST(t))
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	out := ScheduleCalendar(c, 30*time.Minute, now)
	assert.Contains(t, out, "TRIGGER:-PT30M")

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 4)

	first := events[0]
	assert.Equal(t, EventUID("oorukuduva"), first.Id())
	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, c.Schedule[0].Start.Unix(), start.Unix())
	end, err := first.GetEndAt()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, end.Sub(start))

	summary := first.GetProperty(ics.ComponentPropertySummary)
	require.NotNil(t, summary)
	assert.Equal(t, "Wedding Eve | Oorukuduva", summary.Value)
}

func TestEventUIDStable(t *testing.T) {
	assert.Equal(t, EventUID("neer-edpa"), EventUID("neer-edpa"))
	assert.NotEqual(t, EventUID("neer-edpa"), EventUID("bale-birud"))
	assert.True(t, strings.HasSuffix(EventUID("x"), "@weddingapp"))
}
