package models

import "github.com/google/uuid"

// CreateDatabase is the body of a database create request.
type CreateDatabase struct {
	Name string `json:"name"`
}

// Database is the server's view of a database.
type Database struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Tenant string    `json:"tenant"`
}
