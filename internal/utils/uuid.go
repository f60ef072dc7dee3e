// Package utils provides small general-purpose helpers shared across the
// application: local identifier generation, HTTP client construction, JSON
// response writing and bearer-token inspection.
package utils

import "github.com/google/uuid"

// UUIDGenerator produces LocalIDs for newly created records. UUIDv7 is
// preferred because its time-ordered prefix keeps local index pages warm;
// the random v4 fallback only matters if the clock is unusable.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}
