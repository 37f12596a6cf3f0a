package util

import (
	"github.com/google/uuid"
)

// IsSessionToken reports whether s is a session token as issued by the
// server: a random (version 4) UUID in canonical lowercase form. Tokens name
// storage directories, so anything else is rejected before it reaches a path.
func IsSessionToken(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.String() == s
}

// OneOf reports whether value is one of allowed.
func OneOf(value string, allowed ...string) bool {
	for _, v := range allowed {
		if value == v {
			return true
		}
	}
	return false
}
