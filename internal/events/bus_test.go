package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assoc-site/backend/internal/models"
)

type fakeBridge struct {
	published []Envelope
	err       error
	incoming  []Envelope
}

func (f *fakeBridge) Publish(_ context.Context, env Envelope) error {
	f.published = append(f.published, env)
	return f.err
}

func (f *fakeBridge) Subscribe(_ context.Context, handler func(Envelope)) error {
	for _, env := range f.incoming {
		handler(env)
	}
	return nil
}

func TestTopic_PublishSubscribe(t *testing.T) {
	bus := NewBus(nil, nil)
	topics := NewTopics(bus)

	var got []models.Member
	cancel := topics.Members.Subscribe(func(m []models.Member) { got = m })

	members := []models.Member{{Meta: models.Meta{ID: 1}, Name: "Dana"}}
	topics.Members.Publish(context.Background(), members)
	assert.Equal(t, members, got)

	cancel()
	topics.Members.Publish(context.Background(), nil)
	assert.Equal(t, members, got, "cancelled subscriber must not be called")
}

func TestTopic_OnlyMatchingSubscribersAreCalled(t *testing.T) {
	bus := NewBus(nil, nil)
	topics := NewTopics(bus)

	called := false
	topics.Articles.Subscribe(func([]models.Article) { called = true })
	topics.Courses.Publish(context.Background(), []models.Course{})
	assert.False(t, called)
}

func TestSubscribeAll_ReceivesRawJSON(t *testing.T) {
	bus := NewBus(nil, nil)
	topics := NewTopics(bus)

	var names []string
	var last json.RawMessage
	bus.SubscribeAll(func(event string, data json.RawMessage) {
		names = append(names, event)
		last = data
	})

	topics.Events.Publish(context.Background(), models.EventBuckets{Upcoming: []models.Event{{Title: "Gala"}}, Past: []models.Event{}})
	topics.ContactForms.Publish(context.Background(), []models.ContactForm{})

	assert.Equal(t, []string{"eventsUpdated", "contactFormsUpdated"}, names)
	assert.JSONEq(t, "[]", string(last))
}

func TestPublish_ForwardsToBridge(t *testing.T) {
	bridge := &fakeBridge{err: errors.New("redis down")}
	bus := NewBus(bridge, nil)
	topic := NewTopic[[]string](bus, "tagsUpdated")

	delivered := false
	topic.Subscribe(func([]string) { delivered = true })
	topic.Publish(context.Background(), []string{"a"})

	assert.True(t, delivered, "local delivery must not depend on the bridge")
	require.Len(t, bridge.published, 1)
	assert.Equal(t, bus.Origin(), bridge.published[0].Origin)
	assert.Equal(t, "tagsUpdated", bridge.published[0].Event)
	assert.JSONEq(t, `["a"]`, string(bridge.published[0].Data))
}

func TestRun_DeliversRemoteAndSkipsOwnEvents(t *testing.T) {
	bridge := &fakeBridge{}
	bus := NewBus(bridge, nil)
	topics := NewTopics(bus)
	bridge.incoming = []Envelope{
		{Origin: bus.Origin(), Event: "membersUpdated", Data: json.RawMessage(`[{"id":1,"name":"self"}]`)},
		{Origin: "other", Event: "membersUpdated", Data: json.RawMessage(`[{"id":2,"name":"remote"}]`)},
		{Origin: "other", Event: "unknownUpdated", Data: json.RawMessage(`{}`)},
		{Origin: "other", Event: "membersUpdated", Data: json.RawMessage(`{"not":"an array"}`)},
	}

	var got [][]models.Member
	topics.Members.Subscribe(func(m []models.Member) { got = append(got, m) })

	require.NoError(t, bus.Run(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, "remote", got[0][0].Name)
	assert.Empty(t, bridge.published, "bridged events are not re-published")
}

func TestNotifier(t *testing.T) {
	bus := NewBus(nil, nil)
	topics := NewTopics(bus)
	var got []models.Reservation
	topics.Reservations.Subscribe(func(r []models.Reservation) { got = r })

	topics.Reservations.Notifier()([]models.Reservation{{KidsName: "Sam"}})
	require.Len(t, got, 1)
	assert.Equal(t, "Sam", got[0].KidsName)
}
