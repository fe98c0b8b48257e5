// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package event is an in-process publish/subscribe bus for governance
// events.
package event

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 64
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 2
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// Subscriber receives events from the bus. Close must be idempotent
type Subscriber interface {
	Deliver(Event) error
	Close()
}

type queuedEvent struct {
	eventType EventType
	event     Event
}

type EventBus struct {
	logger      *slog.Logger
	metrics     *eventMetrics
	subscribers map[EventType]map[EventSubscriberId]Subscriber
	asyncQueue  chan queuedEvent
	doneCh      chan struct{}
	workerWg    sync.WaitGroup
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	stopOnce    sync.Once
	stopped     bool
}

// NewEventBus creates an EventBus and starts its async delivery workers.
// Both arguments may be nil
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		logger:      logger.With("component", "event"),
		subscribers: make(map[EventType]map[EventSubscriberId]Subscriber),
		asyncQueue:  make(chan queuedEvent, AsyncQueueSize),
		doneCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		e.metrics = newEventMetrics(promRegistry)
	}
	for range AsyncWorkerPoolSize {
		e.workerWg.Add(1)
		go e.asyncWorker()
	}
	return e
}

func (e *EventBus) asyncWorker() {
	defer e.workerWg.Done()
	for {
		select {
		case <-e.doneCh:
			return
		case qe := <-e.asyncQueue:
			e.Publish(qe.eventType, qe.event)
		}
	}
}

// Subscribe returns a buffered channel that receives events of the given
// type. Events are dropped for a subscriber whose buffer is full
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	sub := newChannelSubscriber(EventQueueSize, e.logger)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		sub.Close()
		return 0, sub.ch
	}
	subId := e.addLocked(eventType, sub)
	return subId, sub.ch
}

// SubscribeFunc calls handlerFunc from a dedicated goroutine for every event
// of the given type until the subscription ends
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func() {
		for evt := range evtCh {
			handlerFunc(evt)
		}
	}()
	return subId
}

// RegisterSubscriber adds a custom subscriber, such as a persistent journal
func (e *EventBus) RegisterSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return 0
	}
	return e.addLocked(eventType, sub)
}

func (e *EventBus) addLocked(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.lastSubId++
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]Subscriber)
	}
	e.subscribers[eventType][e.lastSubId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return e.lastSubId
}

// Unsubscribe removes a subscriber and closes it
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	sub, ok := e.subscribers[eventType][subId]
	if ok {
		delete(e.subscribers[eventType], subId)
		if len(e.subscribers[eventType]) == 0 {
			delete(e.subscribers, eventType)
		}
		if e.metrics != nil {
			e.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
		}
	}
	e.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Publish delivers an event to every current subscriber of its type before
// returning. A subscriber whose Deliver fails or panics is removed
func (e *EventBus) Publish(eventType EventType, evt Event) {
	e.mu.RLock()
	targets := make(map[EventSubscriberId]Subscriber, len(e.subscribers[eventType]))
	for id, sub := range e.subscribers[eventType] {
		targets[id] = sub
	}
	e.mu.RUnlock()
	for id, sub := range targets {
		if err := deliver(sub, evt); err != nil {
			e.logger.Warn(
				"event delivery failed, removing subscriber",
				"type", eventType,
				"subscriber", id,
				"error", err,
			)
			if e.metrics != nil {
				e.metrics.deliveryErrors.WithLabelValues(string(eventType)).Inc()
			}
			e.Unsubscribe(eventType, id)
		}
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

func deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// PublishAsync queues an event for delivery by the worker pool. It returns
// false when the bus is stopped or the queue is full
func (e *EventBus) PublishAsync(eventType EventType, evt Event) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return false
	}
	select {
	case e.asyncQueue <- queuedEvent{eventType: eventType, event: evt}:
		return true
	default:
		e.logger.Warn("async event queue full, dropping event", "type", eventType)
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues(string(eventType)).Inc()
		}
		return false
	}
}

// Stop shuts down the async workers and closes every subscriber. Events
// still queued for async delivery are discarded. Stop is idempotent and the
// bus cannot be used afterward
func (e *EventBus) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		subs := e.subscribers
		e.subscribers = make(map[EventType]map[EventSubscriberId]Subscriber)
		e.mu.Unlock()
		close(e.doneCh)
		e.workerWg.Wait()
		for _, byId := range subs {
			for _, sub := range byId {
				sub.Close()
			}
		}
		if e.metrics != nil {
			e.metrics.subscribers.Reset()
		}
	})
}

// channelSubscriber feeds a buffered channel without ever blocking the
// publisher
type channelSubscriber struct {
	logger *slog.Logger
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func newChannelSubscriber(size int, logger *slog.Logger) *channelSubscriber {
	return &channelSubscriber{
		logger: logger,
		ch:     make(chan Event, size),
	}
}

func (c *channelSubscriber) Deliver(evt Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- evt:
	default:
		if c.logger != nil {
			c.logger.Warn("subscriber buffer full, dropping event", "type", evt.Type)
		}
	}
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
