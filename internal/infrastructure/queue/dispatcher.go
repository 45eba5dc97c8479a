package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/api/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Notification is one user-facing message queued for delivery.
type Notification struct {
	UserID    string
	EventType string
	Payload   map[string]any
}

// Sink is the terminal delivery channel for notifications (push gateway,
// email, websocket fan-out). Implementations may block; the dispatcher
// isolates them from the request path.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// Dispatcher fans notifications out to a fixed set of workers using
// consistent hashing on the user id, so one user's notifications are
// delivered in the order they were produced.
//
// Notify never blocks: when a worker channel is full the notification is
// dropped and counted. State transitions must not wait on notifications.
type Dispatcher struct {
	workers []chan Notification
	sink    Sink
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink Sink, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan Notification, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Notification, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Notify implements ports.Notifier.
func (d *Dispatcher) Notify(userID, eventType string, payload map[string]any) {
	n := Notification{UserID: userID, EventType: eventType, Payload: payload}
	idx := d.shardIndex(userID)
	select {
	case d.workers[idx] <- n:
		metrics.NotifyQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.NotifyDroppedTotal.Inc()
		d.log.Warn().
			Str("user_id", userID).
			Str("event_type", eventType).
			Int("worker_id", idx).
			Msg("notification dropped, worker channel full")
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan Notification) {
	worker := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			metrics.NotifyQueueDepth.WithLabelValues(worker).Set(float64(len(ch)))
			if err := d.sink.Deliver(ctx, n); err != nil {
				d.log.Error().Err(err).
					Str("user_id", n.UserID).
					Str("event_type", n.EventType).
					Int("worker_id", id).
					Msg("notification delivery failed")
			}
		}
	}
}
