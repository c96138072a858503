package models

import "time"

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Date        time.Time `json:"date"`
	Creator     string    `json:"creator"`
}
