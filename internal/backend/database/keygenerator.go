package database

import "github.com/segmentio/ksuid"

// NewResultID returns a random, time sortable identifier for a processing request.
// It only contains base62 characters so it can be used in filenames as is.
func NewResultID() string {
	return ksuid.New().String()
}
