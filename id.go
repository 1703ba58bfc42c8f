package tenantstore

import (
	"github.com/google/uuid"
)

// NewID generates a UUIDv7 (time-ordered) record identifier.
// Time-ordered identifiers keep provider key ranges append-friendly and
// let creation time be inferred from the identifier alone.
func NewID() RecordID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to UUIDv4 if NewV7 fails (extremely rare)
		id = uuid.New()
	}
	return RecordID(id.String())
}

// IsValidID checks if a string is a valid UUID
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
