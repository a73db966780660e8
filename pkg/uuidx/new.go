package uuidx

import "github.com/google/uuid"

// New generates a version 7 (time ordered) UUID.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a version 7 UUID and returns its canonical string form.
func NewString() string {
	return New().String()
}

// OrNew returns candidate in canonical form when it parses as a UUID of any
// version, and a freshly generated version 7 UUID string otherwise.
//
// It is used to accept a caller supplied correlation id (for example an
// X-Request-ID header) without trusting arbitrary input.
func OrNew(candidate string) string {
	if candidate != "" && len(candidate) <= 45 {
		if id, err := uuid.Parse(candidate); err == nil {
			return id.String()
		}
	}
	return NewString()
}
