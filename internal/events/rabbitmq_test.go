package events

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (r *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	r.exchange = exchange
	r.key = key
	r.msg = msg
	return nil
}

func (r *recordingChannel) Close() error {
	r.closed = true
	return nil
}

func TestRabbitMQPublisherPublishesPostUpdated(t *testing.T) {
	ch := &recordingChannel{}
	pub := &RabbitMQPublisher{channel: ch}

	event := NewPostUpdated(PostUpdatedPayload{Slug: "hello", Title: "Hello", PhotoChanged: true})
	if err := pub.PublishPostUpdated(context.Background(), event); err != nil {
		t.Fatalf("PublishPostUpdated returned error: %v", err)
	}

	if ch.exchange != ExchangeName || ch.key != TypePostUpdated {
		t.Fatalf("unexpected routing %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.MessageId != event.ID.String() {
		t.Fatalf("expected message id %s, got %s", event.ID, ch.msg.MessageId)
	}

	var decoded PostUpdated
	if err := json.Unmarshal(ch.msg.Body, &decoded); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if decoded.Payload.Slug != "hello" || !decoded.Payload.PhotoChanged {
		t.Fatalf("unexpected payload %+v", decoded.Payload)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !ch.closed {
		t.Fatal("expected channel closed")
	}
	if err := pub.PublishPostUpdated(context.Background(), event); err == nil {
		t.Fatal("expected publish after close to fail")
	}
}
