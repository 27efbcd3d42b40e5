package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/messaging"
)

const (
	defaultNotificationQueueSize = 1024
	notificationPublishTimeout   = 10 * time.Second
)

// NotificationService forwards domain events to the message bus so chat
// channels and vendor dashboards can react to them. Events are queued and
// published in the background; a full queue drops the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  messaging.Publisher
	logger     *zap.Logger

	queue     chan queuedEvent
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

type queuedEvent struct {
	event events.Event
	span  trace.SpanContext
}

// NewNotificationService creates the service. queueSize <= 0 uses the default.
func NewNotificationService(dispatcher events.Dispatcher, publisher messaging.Publisher, logger *zap.Logger, queueSize int) *NotificationService {
	if queueSize <= 0 {
		queueSize = defaultNotificationQueueSize
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     loggerOrNop(logger),
		queue:      make(chan queuedEvent, queueSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start subscribes to every event type and begins forwarding.
func (n *NotificationService) Start() {
	if n.dispatcher == nil || n.publisher == nil {
		return
	}
	n.startOnce.Do(func() {
		for _, eventType := range events.AllEventTypes() {
			n.dispatcher.Subscribe(eventType, n.enqueue)
		}
		n.started.Store(true)
		go n.drain()
	})
}

// Stop publishes what is already queued and returns once done or when ctx ends.
func (n *NotificationService) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() { close(n.stop) })
	if !n.started.Load() {
		return nil
	}
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notification queue: %w", ctx.Err())
	}
}

func (n *NotificationService) enqueue(ctx context.Context, event events.Event) error {
	item := queuedEvent{event: event, span: trace.SpanContextFromContext(ctx)}
	select {
	case <-n.stop:
		return fmt.Errorf("notifications stopped, %s event not forwarded", event.Type)
	default:
	}
	select {
	case n.queue <- item:
		return nil
	default:
		return fmt.Errorf("notification queue full, %s event dropped", event.Type)
	}
}

func (n *NotificationService) drain() {
	defer close(n.done)
	for {
		select {
		case item := <-n.queue:
			n.forward(item)
		case <-n.stop:
			for {
				select {
				case item := <-n.queue:
					n.forward(item)
				default:
					return
				}
			}
		}
	}
}

func (n *NotificationService) forward(item queuedEvent) {
	ctx, cancel := context.WithTimeout(
		trace.ContextWithSpanContext(context.Background(), item.span), notificationPublishTimeout)
	defer cancel()

	event := item.event
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to encode event", zap.String("event_type", string(event.Type)), zap.Error(err))
		return
	}
	if err := n.publisher.Publish(ctx, event.VendorID, body); err != nil {
		n.logger.Warn("failed to publish event",
			zap.String("event_type", string(event.Type)),
			zap.String("aggregate_id", event.AggregateID),
			zap.Error(err))
		return
	}
	n.logger.Debug("event forwarded",
		zap.String("event_type", string(event.Type)),
		zap.String("vendor_id", event.VendorID),
		zap.String("aggregate_id", event.AggregateID))
}
