package models

// User is the stored account. Password holds the bcrypt hash.
type User struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Password      string   `json:"password"`
	CreatedEvents []string `json:"created_events"`
}
