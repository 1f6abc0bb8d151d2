package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case e := <-sub.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4)
	id := uuid.New()

	first := b.Subscribe(id)
	second := b.Subscribe(id)
	defer b.Unsubscribe(id, first)
	defer b.Unsubscribe(id, second)

	b.Publish(id, NewStatus("working"))

	assert.Equal(t, TypeStatus, recv(t, first).Type)
	assert.Equal(t, TypeStatus, recv(t, second).Type)
}

func TestBroadcaster_ScopedByInvestment(t *testing.T) {
	b := NewBroadcaster(4)
	watched := uuid.New()
	other := uuid.New()

	sub := b.Subscribe(watched)
	defer b.Unsubscribe(watched, sub)

	b.Publish(other, NewDone())

	select {
	case e := <-sub.Events():
		t.Fatalf("received event %q for a different investment", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_LateJoinerMissesEarlierEvents(t *testing.T) {
	b := NewBroadcaster(4)
	id := uuid.New()

	b.Publish(id, NewStatus("before any subscriber"))

	sub := b.Subscribe(id)
	defer b.Unsubscribe(id, sub)

	b.Publish(id, NewResult("after joining"))

	e := recv(t, sub)
	assert.Equal(t, TypeResult, e.Type)
	assert.Equal(t, 0, len(sub.ch), "no replay of earlier events")
}

func TestBroadcaster_SlowSubscriberDropped(t *testing.T) {
	b := NewBroadcaster(1)
	id := uuid.New()

	slow := b.Subscribe(id)
	healthy := b.Subscribe(id)
	defer b.Unsubscribe(id, healthy)

	// Fill the slow subscriber's buffer, then overflow it. The healthy
	// subscriber keeps draining and stays registered.
	b.Publish(id, NewStatus("one"))
	recv(t, healthy)
	b.Publish(id, NewStatus("two"))

	assert.Equal(t, 1, b.SubscriberCount(id), "slow subscriber should be dropped")

	// Dropped subscriber's channel is closed after draining
	<-slow.Events()
	_, open := <-slow.Events()
	assert.False(t, open)

	// Healthy subscriber keeps receiving
	assert.Equal(t, TypeStatus, recv(t, healthy).Type)
	b.Publish(id, NewDone())
	assert.Equal(t, TypeDone, recv(t, healthy).Type)
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(4)
	id := uuid.New()

	sub := b.Subscribe(id)
	b.Unsubscribe(id, sub)

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, b.SubscriberCount(id))

	// Double unsubscribe is a no-op
	b.Unsubscribe(id, sub)
}

func TestBroadcaster_PublishWithoutSubscribers(t *testing.T) {
	b := NewBroadcaster(4)
	b.Publish(uuid.New(), NewDone())
}

func TestEvent_Payload(t *testing.T) {
	e := Event{Type: TypeConnected}
	assert.JSONEq(t, `{}`, string(e.Payload()))

	e = NewError("boom")
	var data map[string]string
	require.NoError(t, json.Unmarshal(e.Payload(), &data))
	assert.Equal(t, "boom", data["message"])
}

func TestValidType(t *testing.T) {
	assert.True(t, ValidType(TypeToolStart))
	assert.True(t, ValidType(TypeDone))
	assert.False(t, ValidType("telemetry"))
}
