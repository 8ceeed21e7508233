package broadcast

import (
	"secsync/internal/metrics"
	"secsync/pkg/models"
)

// Hub holds one topic per collection plus the loading and error channels.
type Hub struct {
	Incidents       *Topic[models.Incidents]
	Assets          *Topic[models.Assets]
	Threats         *Topic[models.Threats]
	Vulnerabilities *Topic[models.Vulnerabilities]
	Loading         *Topic[bool]
	// Error carries the last user-facing failure message; "" means none.
	Error *Topic[string]
}

// NewHub creates a hub with empty collections.
func NewHub() *Hub {
	return &Hub{
		Incidents:       NewTopic("incidents", models.Incidents{}),
		Assets:          NewTopic("assets", models.Assets{}),
		Threats:         NewTopic("threats", models.Threats{}),
		Vulnerabilities: NewTopic("vulnerabilities", models.Vulnerabilities{}),
		Loading:         NewTopic("loading", false),
		Error:           NewTopic("error", ""),
	}
}

// PublishCollection routes list to the topic of its kind.
func (h *Hub) PublishCollection(list models.EntityList) {
	if list == nil {
		return
	}
	switch v := list.(type) {
	case models.Incidents:
		h.Incidents.Publish(v)
	case models.Assets:
		h.Assets.Publish(v)
	case models.Threats:
		h.Threats.Publish(v)
	case models.Vulnerabilities:
		h.Vulnerabilities.Publish(v)
	default:
		return
	}
	metrics.CollectionSize.WithLabelValues(string(list.Kind())).Set(float64(list.Len()))
}

// PublishError sets the error channel.
func (h *Hub) PublishError(message string) {
	h.Error.Publish(message)
}

// SetLoading sets the loading channel.
func (h *Hub) SetLoading(loading bool) {
	h.Loading.Publish(loading)
}

// Collection returns the current value for kind.
func (h *Hub) Collection(kind models.Kind) models.EntityList {
	switch kind {
	case models.KindIncidents:
		return h.Incidents.Value()
	case models.KindAssets:
		return h.Assets.Value()
	case models.KindThreats:
		return h.Threats.Value()
	case models.KindVulnerabilities:
		return h.Vulnerabilities.Value()
	default:
		return nil
	}
}

// Event is a tagged update from any hub channel.
type Event struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// SubscribeAll forwards every channel to fn, replaying current values first.
// The returned func cancels every underlying subscription.
func (h *Hub) SubscribeAll(fn func(Event)) func() {
	unsubs := []func(){
		subscribeEvent(h.Incidents, fn),
		subscribeEvent(h.Assets, fn),
		subscribeEvent(h.Threats, fn),
		subscribeEvent(h.Vulnerabilities, fn),
		subscribeEvent(h.Loading, fn),
		subscribeEvent(h.Error, fn),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func subscribeEvent[T any](t *Topic[T], fn func(Event)) func() {
	sub := t.Subscribe(func(v T) {
		fn(Event{Channel: t.Name(), Data: v})
	})
	return sub.Unsubscribe
}
