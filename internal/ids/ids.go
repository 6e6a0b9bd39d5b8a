package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a random identifier for rows and stored files.
func New() string {
	return uuid.NewString()
}

// NewTask returns a time-sortable identifier for queued maintenance tasks.
func NewTask() string {
	return ksuid.New().String()
}
