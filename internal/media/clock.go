package media

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so identity resolution is deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts media id generation.
type IDGenerator interface {
	NewID() uuid.UUID
}

// UUIDGenerator produces random v4 UUIDs.
type UUIDGenerator struct{}

// NewID implements IDGenerator.
func (UUIDGenerator) NewID() uuid.UUID { return uuid.New() }
