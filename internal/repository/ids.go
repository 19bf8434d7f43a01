package repository

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func newUserID() string {
	return uuid.New().String()
}

// newPostID returns a ULID, so post ids sort by creation time.
func newPostID() string {
	return ulid.Make().String()
}
