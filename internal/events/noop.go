package events

import "context"

type NoopPublisher struct{}

func (NoopPublisher) PublishPostUpdated(context.Context, PostUpdated) error {
	return nil
}

var _ Publisher = (*NoopPublisher)(nil)
