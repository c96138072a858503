package storage

import "errors"

var (
	ErrUserExists      = errors.New("user exists already")
	ErrUserNotFound    = errors.New("user not found")
	ErrEventNotFound   = errors.New("event not found")
	ErrBookingNotFound = errors.New("booking not found")
)
