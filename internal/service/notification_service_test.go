package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/events"
)

// stalledPublisher blocks every publish until released, like an unreachable broker.
type stalledPublisher struct {
	entered chan struct{}
	release chan struct{}

	mu       sync.Mutex
	received []events.Event
}

func newStalledPublisher() *stalledPublisher {
	return &stalledPublisher{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (p *stalledPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	p.entered <- struct{}{}
	<-p.release
	var event events.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, event)
	return nil
}

func (p *stalledPublisher) Close() error { return nil }

func (p *stalledPublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.received))
	for _, event := range p.received {
		ids = append(ids, event.ID)
	}
	return ids
}

func TestNotificationService_SlowBrokerDoesNotBlockPublishers(t *testing.T) {
	ctx := context.Background()
	dispatcher := events.NewInMemoryDispatcher()
	publisher := newStalledPublisher()
	notifications := NewNotificationService(dispatcher, publisher, zap.NewNop(), 2)
	notifications.Start()

	publish := func(id string) error {
		return dispatcher.Publish(ctx, events.Event{ID: id, Type: events.EventOrderPaid, VendorID: testVendor, AggregateID: id})
	}

	require.NoError(t, publish("e-1"))
	select {
	case <-publisher.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first event was never forwarded")
	}

	started := time.Now()
	require.NoError(t, publish("e-2"))
	require.NoError(t, publish("e-3"))
	assert.Error(t, publish("e-4"), "a full queue drops the event")
	assert.Less(t, time.Since(started), time.Second)

	close(publisher.release)
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, notifications.Stop(stopCtx))
	assert.Equal(t, []string{"e-1", "e-2", "e-3"}, publisher.ids())

	assert.Error(t, publish("e-5"), "events after stop are not forwarded")
}

func TestNotificationService_StopWithoutStart(t *testing.T) {
	notifications := NewNotificationService(events.NewInMemoryDispatcher(), newStalledPublisher(), zap.NewNop(), 0)
	assert.NoError(t, notifications.Stop(context.Background()))
}
