package domain

import "time"

type User struct {
	ID          string
	ExternalID  string // subject of the identity assertion, unique
	DisplayName string // set once when the user is created
	PictureURL  string
	Active      bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
