package uid

import "github.com/google/uuid"

// namespace scopes deterministic identifiers to this application.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://culturehub.app/sites"))

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// FromKey derives a stable identifier from a natural key. The same key
// always yields the same id.
func FromKey(key string) string {
	return uuid.NewSHA1(namespace, []byte(key)).String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
