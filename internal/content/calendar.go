package content

import (
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// uidNamespace scopes event UIDs. A UID depends only on the event id.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("weddingapp/schedule"))

// EventUID returns the iCalendar UID for a schedule event id.
func EventUID(id string) string {
	return uuid.NewSHA1(uidNamespace, []byte(id)).String() + "@weddingapp"
}

// ScheduleCalendar renders the schedule as an iCalendar feed. Each event
// carries a display alarm lead before it starts.
func ScheduleCalendar(c *Content, lead time.Duration, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//weddingapp//schedule//EN")
	cal.SetXWRCalName("Wedding · " + c.DatesDisplay)
	if loc := c.WeddingDate.Location(); loc != nil {
		cal.SetXWRTimezone(loc.String())
	}

	for _, ev := range c.Schedule {
		e := cal.AddEvent(EventUID(ev.ID))
		e.SetDtStampTime(now.UTC())
		e.SetStartAt(ev.Start.UTC())
		e.SetEndAt(ev.End().UTC())
		e.SetSummary(ev.Title)
		if ev.Location != "" {
			e.SetLocation(ev.Location + ", " + c.Venue.Name)
		} else {
			e.SetLocation(c.Venue.Name)
		}
		if ev.Desc != "" {
			e.SetDescription(ev.Desc)
		}
		if c.Venue.Latitude != 0 || c.Venue.Longitude != 0 {
			e.SetGeo(c.Venue.Latitude, c.Venue.Longitude)
		}
		if c.Venue.MapURL != "" {
			e.SetURL(c.Venue.MapURL)
		}

		if lead > 0 {
			a := e.AddAlarm()
			a.SetAction(ics.ActionDisplay)
			a.SetTrigger("-PT" + formatMinutes(lead) + "M")
		}
	}
	return cal.Serialize()
}

func formatMinutes(d time.Duration) string {
	return strconv.Itoa(max(int(d/time.Minute), 1))
}
