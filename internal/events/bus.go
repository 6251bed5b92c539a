// Package events is the in-process change bus. Every cache save publishes the
// fresh collection on its topic; the bus fans it out to local subscribers,
// to other instances through Redis, and to dashboard WebSocket clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bridge carries events between instances.
type Bridge interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks, calling handler for every envelope until ctx is done.
	Subscribe(ctx context.Context, handler func(Envelope)) error
}

// Envelope is the wire form of one event.
type Envelope struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

type handler struct {
	id int
	fn func(value any, raw json.RawMessage)
}

// Bus dispatches typed events by topic name.
type Bus struct {
	origin   string
	bridge   Bridge
	logger   *zap.Logger
	mu       sync.RWMutex
	nextID   int
	handlers map[string][]handler
	all      []handler
	decoders map[string]func(json.RawMessage) (any, error)
}

// NewBus creates a bus. bridge may be nil for a single instance.
func NewBus(bridge Bridge, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		origin:   uuid.NewString(),
		bridge:   bridge,
		logger:   logger,
		handlers: make(map[string][]handler),
		decoders: make(map[string]func(json.RawMessage) (any, error)),
	}
}

// Origin identifies this bus instance on the bridge.
func (b *Bus) Origin() string { return b.origin }

func (b *Bus) subscribe(topic string, fn func(any, json.RawMessage)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	h := handler{id: b.nextID, fn: fn}
	if topic == "" {
		b.all = append(b.all, h)
	} else {
		b.handlers[topic] = append(b.handlers[topic], h)
	}
	return func() { b.unsubscribe(topic, h.id) }
}

func (b *Bus) unsubscribe(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remove := func(hs []handler) []handler {
		out := hs[:0]
		for _, h := range hs {
			if h.id != id {
				out = append(out, h)
			}
		}
		return out
	}
	if topic == "" {
		b.all = remove(b.all)
		return
	}
	b.handlers[topic] = remove(b.handlers[topic])
}

// SubscribeAll receives every event on every topic as raw JSON.
func (b *Bus) SubscribeAll(fn func(event string, data json.RawMessage)) (cancel func()) {
	return b.subscribe("", func(v any, raw json.RawMessage) {
		ev := v.(namedValue)
		fn(ev.name, raw)
	})
}

type namedValue struct {
	name  string
	value any
}

func (b *Bus) deliver(topic string, value any, raw json.RawMessage) {
	b.mu.RLock()
	hs := append([]handler(nil), b.handlers[topic]...)
	all := append([]handler(nil), b.all...)
	b.mu.RUnlock()

	for _, h := range hs {
		h.fn(value, raw)
	}
	for _, h := range all {
		h.fn(namedValue{name: topic, value: value}, raw)
	}
}

func (b *Bus) publish(ctx context.Context, topic string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		b.logger.Error("marshal event", zap.String("event", topic), zap.Error(err))
		return
	}
	b.deliver(topic, value, raw)
	if b.bridge == nil {
		return
	}
	env := Envelope{Origin: b.origin, Event: topic, Data: raw, At: time.Now().Unix()}
	if err := b.bridge.Publish(ctx, env); err != nil {
		b.logger.Warn("bridge publish failed", zap.String("event", topic), zap.Error(err))
	}
}

// Run consumes the bridge until ctx is done. Events published by this
// instance are skipped since they were already delivered locally.
func (b *Bus) Run(ctx context.Context) error {
	if b.bridge == nil {
		<-ctx.Done()
		return nil
	}
	return b.bridge.Subscribe(ctx, b.receive)
}

func (b *Bus) receive(env Envelope) {
	if env.Origin == b.origin {
		return
	}
	b.mu.RLock()
	decode, ok := b.decoders[env.Event]
	b.mu.RUnlock()
	if !ok {
		b.logger.Debug("event for unknown topic", zap.String("event", env.Event))
		return
	}
	value, err := decode(env.Data)
	if err != nil {
		b.logger.Warn("decode bridged event", zap.String("event", env.Event), zap.Error(err))
		return
	}
	b.deliver(env.Event, value, env.Data)
}

// Topic is a typed handle on one event name.
type Topic[T any] struct {
	name string
	bus  *Bus
}

// NewTopic registers a topic carrying T payloads.
func NewTopic[T any](bus *Bus, name string) *Topic[T] {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.decoders[name] = func(raw json.RawMessage) (any, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return v, nil
	}
	return &Topic[T]{name: name, bus: bus}
}

// Name returns the event name.
func (t *Topic[T]) Name() string { return t.name }

// Publish delivers v to every subscriber of the topic.
func (t *Topic[T]) Publish(ctx context.Context, v T) {
	t.bus.publish(ctx, t.name, v)
}

// Subscribe calls fn with every payload published on the topic.
func (t *Topic[T]) Subscribe(fn func(T)) (cancel func()) {
	return t.bus.subscribe(t.name, func(v any, _ json.RawMessage) {
		fn(v.(T))
	})
}

// Notifier adapts the topic to a cache notify callback.
func (t *Topic[T]) Notifier() func(T) {
	return func(v T) { t.Publish(context.Background(), v) }
}
