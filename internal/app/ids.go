package app

import "github.com/google/uuid"

// newUUID returns a random (v4) id for new rows.
func newUUID() string {
	return uuid.NewString()
}
