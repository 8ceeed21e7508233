package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secsync/pkg/models"
)

type recorder[T any] struct {
	mu   sync.Mutex
	seen []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.seen = append(r.seen, v)
	r.mu.Unlock()
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.seen...)
}

func TestTopicReplaysCurrentValueOnSubscribe(t *testing.T) {
	topic := NewTopic("counter", 0)
	topic.Publish(5)

	rec := &recorder[int]{}
	sub := topic.Subscribe(rec.add)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{5}, rec.snapshot())
	assert.Equal(t, 5, topic.Value())
}

func TestTopicDeliversLatestValue(t *testing.T) {
	topic := NewTopic("counter", 0)
	rec := &recorder[int]{}
	sub := topic.Subscribe(rec.add)
	defer sub.Unsubscribe()

	for i := 1; i <= 50; i++ {
		topic.Publish(i)
	}

	require.Eventually(t, func() bool {
		seen := rec.snapshot()
		return len(seen) > 0 && seen[len(seen)-1] == 50
	}, time.Second, 5*time.Millisecond)

	seen := rec.snapshot()
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i], "values arrive in publish order")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	topic := NewTopic("slow", 0)
	release := make(chan struct{})
	sub := topic.Subscribe(func(int) { <-release })
	defer func() {
		close(release)
		sub.Unsubscribe()
	}()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			topic.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	topic := NewTopic("x", "a")
	rec := &recorder[string]{}
	sub := topic.Subscribe(rec.add)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, topic.Subscribers())

	topic.Publish("b")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"a"}, rec.snapshot())
}

func TestHubRoutesCollections(t *testing.T) {
	hub := NewHub()
	hub.PublishCollection(models.Assets{{ID: "AST-1"}})
	hub.PublishCollection(models.Threats{{ID: "THR-1"}, {ID: "THR-2"}})
	hub.PublishCollection(nil)

	assert.Equal(t, 1, hub.Collection(models.KindAssets).Len())
	assert.Equal(t, 2, hub.Collection(models.KindThreats).Len())
	assert.Equal(t, 0, hub.Collection(models.KindIncidents).Len())
	assert.Nil(t, hub.Collection(models.Kind("other")))
}

func TestHubSubscribeAllReplaysEveryChannel(t *testing.T) {
	hub := NewHub()
	hub.PublishError("boom")

	var mu sync.Mutex
	channels := map[string]interface{}{}
	cancel := hub.SubscribeAll(func(ev Event) {
		mu.Lock()
		channels[ev.Channel] = ev.Data
		mu.Unlock()
	})
	defer cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(channels) == 6
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "boom", channels["error"])
	assert.Equal(t, false, channels["loading"])
	mu.Unlock()
}
