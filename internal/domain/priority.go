package domain

import "time"

// Priority ranks incident urgency. Lower Level means more urgent.
type Priority struct {
	ID          int64
	Name        string
	Description string
	Level       int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
