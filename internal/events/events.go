// Package events announces post updates to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const TypePostUpdated = "post.updated"

type PostUpdatedPayload struct {
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	PhotoChanged bool   `json:"photo_changed"`
	HasPhoto     bool   `json:"has_photo"`
}

type PostUpdated struct {
	ID        uuid.UUID          `json:"id"`
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   PostUpdatedPayload `json:"payload"`
}

func NewPostUpdated(payload PostUpdatedPayload) PostUpdated {
	return PostUpdated{
		ID:        uuid.New(),
		Type:      TypePostUpdated,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

type Publisher interface {
	PublishPostUpdated(ctx context.Context, e PostUpdated) error
}
