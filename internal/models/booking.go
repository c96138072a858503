package models

import "time"

type Booking struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
