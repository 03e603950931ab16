package models

import "github.com/google/uuid"

// IDGenerator returns a new unique identifier for an entity.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.New().String()
}
