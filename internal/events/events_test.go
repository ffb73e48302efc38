package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
)

var (
	_ Publisher  = (*NATSPublisher)(nil)
	_ Publisher  = (*NoopPublisher)(nil)
	_ Subscriber = (*NATSSubscriber)(nil)
)

func TestPushSubject(t *testing.T) {
	if got := PushSubject("nd-abc123"); got != "fieldnet.push.nd-abc123" {
		t.Errorf("PushSubject = %q", got)
	}
}

func TestPushMessage_WireFormat(t *testing.T) {
	data, err := json.Marshal(PushMessage{NodeID: "nd-1", Kind: "community_alerts"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"node_id":"nd-1","kind":"community_alerts"}` {
		t.Errorf("wire form = %s", got)
	}
}

func TestNoopPublisher(t *testing.T) {
	var pub NoopPublisher
	if err := pub.Publish(context.Background(), TopicVisionDetected, VisionDetected{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNATSPublisher_EncodesEvent(t *testing.T) {
	url := startBus(t)
	pub := testPublisher(t, url)
	sub := testSubscriber(t, url)

	ch, cancel, err := sub.Subscribe(TopicVisionDetected)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	event := VisionDetected{Event: &model.Event{
		ID:   "ev-pub1",
		Kind: model.KindVision,
		Detection: &model.Detection{
			EventType:  model.EventPerson,
			Confidence: 0.93,
		},
	}}
	if err := pub.Publish(context.Background(), TopicVisionDetected, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	pub.conn.Flush()

	select {
	case raw := <-ch:
		var got VisionDetected
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Event.ID != "ev-pub1" || got.Event.Kind != model.KindVision {
			t.Errorf("event = %+v", got.Event)
		}
		if got.Event.Detection == nil || got.Event.Detection.EventType != model.EventPerson {
			t.Errorf("detection = %+v", got.Event.Detection)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("published event never arrived")
	}
}

func TestNATSPublisher_BadPayload(t *testing.T) {
	pub := testPublisher(t, startBus(t))

	if err := pub.Publish(context.Background(), TopicVisionDetected, func() {}); err == nil {
		t.Error("expected a marshal error")
	}
}

func TestNATSPublisher_PublishAfterClose(t *testing.T) {
	pub, err := NewNATSPublisher(startBus(t))
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := pub.Publish(context.Background(), TopicVisionDetected, VisionDetected{}); err == nil {
		t.Error("expected an error publishing on a closed connection")
	}
}
