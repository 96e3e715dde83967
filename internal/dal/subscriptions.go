package dal

import (
	"errors"
	"time"
)

// ErrUnavailable is wrapped by every storage-layer failure regardless of the backend.
var ErrUnavailable = errors.New("persistence unavailable")

type Subscriber struct {
	ChatID    int64     `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}
