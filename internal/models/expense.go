package models

import "time"

// Expense represents a single financial expense record.
type Expense struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Date     time.Time `json:"date"`
	Category string    `json:"category"`
	Amount   float64   `json:"amount"`
}

// User represents a user account. Usernames are unique.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CategoryTotal holds the aggregated spend for one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// Categories is the fixed set of expense categories.
var Categories = []string{"Food", "Transport", "Shopping", "Utilities", "Entertainment", "Others"}

// ValidCategory reports whether category is one of the fixed set.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}
