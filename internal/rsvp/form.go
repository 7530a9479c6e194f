package rsvp

import (
	"errors"
	"strings"
	"time"

	"weddingapp/internal/model"
)

// ErrInvalidForm is returned when a required form field is missing.
var ErrInvalidForm = errors.New("rsvp: name and attending are required")

// timestampLayout matches the browser's Date.toISOString output.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Form is the guest-entered RSVP, before a timestamp is attached.
type Form struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Attending   string `json:"attending"`
	Guests      string `json:"guests"`
	Meal        string `json:"meal"`
	Drink       string `json:"drink"`
	Dietary     string `json:"dietary"`
	PlusOneName string `json:"plusOneName"`
}

// Normalize trims every field and defaults Guests to "1".
func (f Form) Normalize() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Attending = strings.TrimSpace(f.Attending)
	f.Guests = strings.TrimSpace(f.Guests)
	f.Meal = strings.TrimSpace(f.Meal)
	f.Drink = strings.TrimSpace(f.Drink)
	f.Dietary = strings.TrimSpace(f.Dietary)
	f.PlusOneName = strings.TrimSpace(f.PlusOneName)
	if f.Guests == "" {
		f.Guests = "1"
	}
	return f
}

// Validate checks the fields the UI requires before submission.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Attending) == "" {
		return ErrInvalidForm
	}
	return nil
}

// Record stamps the form with now as a spreadsheet row.
func (f Form) Record(now time.Time) model.RSVP {
	return model.RSVP{
		Timestamp:   now.UTC().Format(timestampLayout),
		Name:        f.Name,
		Phone:       f.Phone,
		Attending:   f.Attending,
		Guests:      f.Guests,
		Meal:        f.Meal,
		Drink:       f.Drink,
		Dietary:     f.Dietary,
		PlusOneName: f.PlusOneName,
	}
}

// document is the backup shape: the form fields only. The store adds
// createdAt.
func (f Form) document() map[string]any {
	return map[string]any{
		"name":        f.Name,
		"phone":       f.Phone,
		"attending":   f.Attending,
		"guests":      f.Guests,
		"meal":        f.Meal,
		"drink":       f.Drink,
		"dietary":     f.Dietary,
		"plusOneName": f.PlusOneName,
	}
}
