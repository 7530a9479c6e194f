package push

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	appLog "weddingapp/internal/log"
)

// Event is a scheduled wedding event that gets a reminder before it starts.
type Event struct {
	ID       string
	Title    string
	Start    time.Time
	Location string
}

// Reminder is one notification due at At. Key is unique per reminder so
// callers can recognise repeats.
type Reminder struct {
	Key     string
	At      time.Time
	Message Message
}

// ReminderPlanner computes which reminders fall into a time window.
type ReminderPlanner struct {
	events   []Event
	lead     time.Duration
	rsvp     *rrule.RRule
	deadline time.Time
	rsvpBody string
}

// PlannerOptions configures a ReminderPlanner.
type PlannerOptions struct {
	Events []Event
	// Lead is how long before an event its reminder is sent.
	Lead time.Duration
	// RSVPRule is an RRULE for RSVP nudges. Empty disables them.
	RSVPRule string
	// RSVPStart anchors the rule (DTSTART), truncated to the hour; its
	// zone is used for BYHOUR.
	RSVPStart time.Time
	// RSVPDeadline ends RSVP nudges. Display text goes in RSVPDeadlineText.
	RSVPDeadline     time.Time
	RSVPDeadlineText string
}

func NewReminderPlanner(opts PlannerOptions) (*ReminderPlanner, error) {
	p := &ReminderPlanner{
		events:   append([]Event(nil), opts.Events...),
		lead:     opts.Lead,
		deadline: opts.RSVPDeadline,
	}
	if p.lead <= 0 {
		p.lead = 30 * time.Minute
	}
	if opts.RSVPRule != "" {
		r, err := rrule.StrToRRule(opts.RSVPRule)
		if err != nil {
			return nil, fmt.Errorf("push: parse rsvp rule %q: %w", opts.RSVPRule, err)
		}
		r.DTStart(startOfHour(opts.RSVPStart))
		p.rsvp = r
		p.rsvpBody = "Please confirm your attendance"
		if opts.RSVPDeadlineText != "" {
			p.rsvpBody += " by " + opts.RSVPDeadlineText
		}
		p.rsvpBody += "."
	}
	return p, nil
}

// startOfHour drops minutes and seconds on t's wall clock. rrule copies
// them from DTSTART into every occurrence unless the rule sets them.
func startOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// Due returns the reminders with from < At <= to, ordered by At.
func (p *ReminderPlanner) Due(from, to time.Time) []Reminder {
	if !to.After(from) {
		return nil
	}
	var out []Reminder

	for _, ev := range p.events {
		at := ev.Start.Add(-p.lead)
		if at.After(from) && !at.After(to) {
			body := fmt.Sprintf("Starts in %d minutes", int(p.lead.Minutes()))
			if ev.Location != "" {
				body += " at " + ev.Location
			}
			out = append(out, Reminder{
				Key: "event:" + ev.ID,
				At:  at,
				Message: Message{
					Title: ev.Title,
					Body:  body + ".",
					Data:  map[string]string{"type": "event", "event": ev.ID},
				},
			})
		}
	}

	if p.rsvp != nil {
		end := to
		if !p.deadline.IsZero() && p.deadline.Before(end) {
			end = p.deadline
		}
		if end.After(from) {
			for _, at := range p.rsvp.Between(from, end, true) {
				if !at.After(from) {
					continue
				}
				out = append(out, Reminder{
					Key: "rsvp:" + at.UTC().Format(time.RFC3339),
					At:  at,
					Message: Message{
						Title: "RSVP Reminder",
						Body:  p.rsvpBody,
						Data:  map[string]string{"type": "rsvp"},
					},
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// ReminderJob advances a window cursor on every Run and broadcasts the
// reminders that became due since the previous Run.
type ReminderJob struct {
	planner     *ReminderPlanner
	broadcaster *Broadcaster

	mu     sync.Mutex
	cursor time.Time
}

// NewReminderJob starts the window at start; reminders due at or before
// start are never sent.
func NewReminderJob(planner *ReminderPlanner, broadcaster *Broadcaster, start time.Time) *ReminderJob {
	return &ReminderJob{planner: planner, broadcaster: broadcaster, cursor: start}
}

// Run sends every reminder due in (cursor, now] and moves the cursor to
// now. It returns the reminders it attempted.
func (j *ReminderJob) Run(ctx context.Context, now time.Time) []Reminder {
	j.mu.Lock()
	defer j.mu.Unlock()

	due := j.planner.Due(j.cursor, now)
	if now.After(j.cursor) {
		j.cursor = now
	}
	for _, r := range due {
		if _, err := j.broadcaster.Broadcast(ctx, "reminder", r.Message); err != nil {
			appLog.Error("reminder broadcast failed", err, "key", r.Key)
		}
	}
	return due
}
