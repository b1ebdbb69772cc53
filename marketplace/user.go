package marketplace

import "github.com/google/uuid"

// NewUser carries the identity fields the order views display.
// Credentials are handled by the authentication collaborator and never stored here.
type NewUser struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
}
