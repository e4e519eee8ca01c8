package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/config"
	"github.com/stemsi/examhub/internal/metrics"
	"github.com/stemsi/examhub/internal/model"
)

const (
	NotifyPollTimeout  = 1 * time.Second
	NotifyDrainTimeout = 5 * time.Second
)

// Deliverer pushes one publish event to the relay.
type Deliverer interface {
	Deliver(ctx context.Context, ev model.PublishEvent) error
}

// NotifyWorker moves publish events from the Redis queue to the relay.
// Each event gets exactly one delivery attempt; failures are logged and
// dropped, never requeued.
type NotifyWorker struct {
	rdb   *redis.Client
	relay Deliverer
	queue string
	log   zerolog.Logger
}

func NewNotifyWorker(rdb *redis.Client, relay Deliverer, log zerolog.Logger) *NotifyWorker {
	return &NotifyWorker{
		rdb:   rdb,
		relay: relay,
		queue: config.WorkerKey.PublishNotificationsQueue,
		log:   log.With().Str("component", "notify_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

func (w *NotifyWorker) Start(ctx context.Context) {
	w.log.Info().Str("queue", w.queue).Msg("NotifyWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Draining queued notifications...")
			w.drain()
			return

		default:
			item, err := w.rdb.BLPop(ctx, NotifyPollTimeout, w.queue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			w.handle(ctx, item[1])
		}
	}
}

// drain delivers what is still queued, bounded by NotifyDrainTimeout.
func (w *NotifyWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), NotifyDrainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			if err != redis.Nil {
				w.log.Error().Err(err).Msg("LPop error during drain")
			}
			return
		}
		w.handle(ctx, raw)
	}
}

// ----------------------------------------------------------------
// Single delivery
// ----------------------------------------------------------------

func (w *NotifyWorker) handle(ctx context.Context, raw string) {
	var ev model.PublishEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		metrics.RelayDeliveries.WithLabelValues("push", "invalid").Inc()
		return
	}

	err := w.relay.Deliver(ctx, ev)
	metrics.RelayDeliveries.WithLabelValues("push", metrics.Result(err)).Inc()
	if err != nil {
		w.log.Error().Err(err).
			Str("submission_id", ev.SubmissionID.String()).
			Int64("chat_id", ev.TelegramID).
			Msg("Score notification not delivered")
		return
	}

	w.log.Debug().
		Str("submission_id", ev.SubmissionID.String()).
		Int64("chat_id", ev.TelegramID).
		Msg("Score notification delivered")
}
