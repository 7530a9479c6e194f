// Package content holds the static wedding information: schedule, venue,
// stays, RSVP choices and the bundled fallback alerts.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"weddingapp/internal/model"
)

//go:embed content.yaml
var defaultContent []byte

// wallClock is the layout of times in content.yaml.
const wallClock = "2006-01-02T15:04:05"

type Event struct {
	ID       string        `yaml:"id" json:"id"`
	Start    time.Time     `yaml:"-" json:"start"`
	RawStart string        `yaml:"start" json:"-"`
	Duration time.Duration `yaml:"duration" json:"-"`
	Time     string        `yaml:"time" json:"time"`
	Title    string        `yaml:"title" json:"title"`
	Location string        `yaml:"location" json:"location"`
	Icon     string        `yaml:"icon" json:"icon"`
	Desc     string        `yaml:"desc" json:"desc"`
	Photos   []string      `yaml:"photos" json:"photos"`
}

// End is Start plus Duration, or one hour when no duration is set.
func (e Event) End() time.Time {
	if e.Duration <= 0 {
		return e.Start.Add(time.Hour)
	}
	return e.Start.Add(e.Duration)
}

type Fact struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

type Venue struct {
	Name       string  `yaml:"name" json:"name"`
	Address    string  `yaml:"address" json:"address"`
	Latitude   float64 `yaml:"latitude" json:"latitude"`
	Longitude  float64 `yaml:"longitude" json:"longitude"`
	MapURL     string  `yaml:"map_url" json:"map_url"`
	WeatherURL string  `yaml:"weather_url" json:"weather_url"`
	Facts      []Fact  `yaml:"facts" json:"facts"`
}

type Stay struct {
	Name     string  `yaml:"name" json:"name"`
	Type     string  `yaml:"type" json:"type"`
	Distance string  `yaml:"distance" json:"distance"`
	Price    string  `yaml:"price" json:"price"`
	Rating   float64 `yaml:"rating" json:"rating"`
	Tag      string  `yaml:"tag" json:"tag"`
	Desc     string  `yaml:"desc" json:"desc"`
}

type RSVPOptions struct {
	Attending []string `yaml:"attending" json:"attending"`
	Meal      []string `yaml:"meal" json:"meal"`
	Drink     []string `yaml:"drink" json:"drink"`
}

// Content is everything the guest-facing pages show besides alerts.
type Content struct {
	WeddingDate    time.Time   `yaml:"-" json:"wedding_date"`
	RawWeddingDate string      `yaml:"wedding_date" json:"-"`
	DatesDisplay   string      `yaml:"dates_display" json:"dates_display"`
	RSVPDeadline   string      `yaml:"rsvp_deadline" json:"rsvp_deadline"`
	RSVPDeadlineAt time.Time   `yaml:"-" json:"rsvp_deadline_at"`
	RawDeadlineAt  string      `yaml:"rsvp_deadline_at" json:"-"`
	Schedule       []Event     `yaml:"schedule" json:"schedule"`
	Venue          Venue       `yaml:"venue" json:"venue"`
	Stays          []Stay      `yaml:"stays" json:"stays"`
	RSVPOptions    RSVPOptions `yaml:"rsvp_options" json:"rsvp_options"`

	// StaticAlerts decode with yaml's default lowercased field names.
	StaticAlerts []model.Alert `yaml:"alerts" json:"-"`
}

// Default parses the embedded content with wall-clock times in loc.
func Default(loc *time.Location) (*Content, error) {
	return Parse(defaultContent, loc)
}

// Parse decodes content YAML. Every schedule event needs an id and a
// start time.
func Parse(data []byte, loc *time.Location) (*Content, error) {
	if loc == nil {
		loc = time.UTC
	}
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	var err error
	if c.WeddingDate, err = time.ParseInLocation(wallClock, c.RawWeddingDate, loc); err != nil {
		return nil, fmt.Errorf("content: wedding_date: %w", err)
	}
	if c.RawDeadlineAt != "" {
		if c.RSVPDeadlineAt, err = time.ParseInLocation(wallClock, c.RawDeadlineAt, loc); err != nil {
			return nil, fmt.Errorf("content: rsvp_deadline_at: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Schedule))
	for i := range c.Schedule {
		ev := &c.Schedule[i]
		if ev.ID == "" {
			return nil, errors.New("content: schedule event without id")
		}
		if seen[ev.ID] {
			return nil, fmt.Errorf("content: duplicate schedule id %q", ev.ID)
		}
		seen[ev.ID] = true
		if ev.Start, err = time.ParseInLocation(wallClock, ev.RawStart, loc); err != nil {
			return nil, fmt.Errorf("content: event %s start: %w", ev.ID, err)
		}
		if ev.Photos == nil {
			ev.Photos = []string{}
		}
	}

	if c.StaticAlerts == nil {
		c.StaticAlerts = []model.Alert{}
	}
	return &c, nil
}

// Alerts returns a copy of the bundled fallback alerts.
func (c *Content) Alerts() []model.Alert {
	return append([]model.Alert{}, c.StaticAlerts...)
}

// Countdown is the time left until the wedding, split for display.
type Countdown struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Done    bool `json:"done"`
}

// CountdownTo splits target-now into days, hours, minutes and seconds.
// Once target has passed every field is zero and Done is set.
func CountdownTo(target, now time.Time) Countdown {
	diff := target.Sub(now)
	if diff <= 0 {
		return Countdown{Done: true}
	}
	total := int64(diff / time.Second)
	return Countdown{
		Days:    int(total / 86400),
		Hours:   int(total % 86400 / 3600),
		Minutes: int(total % 3600 / 60),
		Seconds: int(total % 60),
	}
}
