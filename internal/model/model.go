package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event attendees are only mutated through the registration engine.
type Event struct {
	ID             string
	Title          string
	Description    string
	Location       string
	Date           time.Time
	OrganizerID    string
	OrganizerEmail string
	AttendeeCount  int
	AttendeeEmails []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *string
	CreatedAt  time.Time
}
