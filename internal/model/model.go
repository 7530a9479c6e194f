package model

import "time"

// Alert is a short announcement shown to guests, optionally flagged urgent.
// Only alerts.ParseAlerts produces these from remote input.
type Alert struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Date   string `json:"date"` // free-form display date, never parsed
	Urgent bool   `json:"urgent"`
}

// RSVP is one guest's attendance response as written to the spreadsheet.
// All fields are strings because the spreadsheet row is untyped.
type RSVP struct {
	Timestamp   string `json:"timestamp"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Attending   string `json:"attending"`
	Guests      string `json:"guests"`
	Meal        string `json:"meal"`
	Drink       string `json:"drink"`
	Dietary     string `json:"dietary"`
	PlusOneName string `json:"plusOneName"`
}

// Token is a push delivery token registration. CreatedAt is assigned by the
// document store when the record is written.
type Token struct {
	Token     string    `json:"token"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}
