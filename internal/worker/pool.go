package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	QueueConciliacion = "jobs:conciliacion"

	JobConciliacion = "conciliacion"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ConciliacionPayload is the delivery-created event carried by QueueConciliacion.
type ConciliacionPayload struct {
	TenantID  string `json:"tenant_id"`
	EntregaID string `json:"entrega_id"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BLMOVE.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueConciliacion publishes the delivery-created event.
func (d *Dispatcher) EnqueueConciliacion(ctx context.Context, tenantID, entregaID uuid.UUID) error {
	return d.enqueue(ctx, QueueConciliacion, JobConciliacion, ConciliacionPayload{
		TenantID:  tenantID.String(),
		EntregaID: entregaID.String(),
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := encodeJob(jobType, data)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

func encodeJob(jobType string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(Job{Type: jobType, Payload: payload})
}

// JobHandler processes the payload of one job type. Retries and dead-lettering
// are the handler's responsibility; the pool only logs the returned error.
type JobHandler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Pool consumes QueueConciliacion with a fixed number of BLMOVE loops. A job
// stays in its worker's processing list until the handler returns, so a crash
// leaves it in Redis and the next Run puts it back on the queue.
type Pool struct {
	rdb      *redis.Client
	queue    string
	handlers map[string]JobHandler
}

func NewPool(rdb *redis.Client, handlers map[string]JobHandler) *Pool {
	return &Pool{rdb: rdb, queue: QueueConciliacion, handlers: handlers}
}

// ProcessingKey is the list holding the job worker id is working on.
func ProcessingKey(queue string, id int) string {
	return fmt.Sprintf("%s:procesando:%d", queue, id)
}

// Run launches numWorkers goroutines and blocks until ctx is cancelled.
// Each goroutine blocks on BLMOVE, zero CPU when idle.
func (p *Pool) Run(ctx context.Context, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	p.recoverInFlight(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		id := i
		g.Go(func() error {
			p.runWorker(ctx, id)
			return nil
		})
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
	return g.Wait()
}

// recoverInFlight moves jobs left in any processing list back to the consumer
// end of the queue. A job still running on another instance may then run
// twice; reconciliation is idempotent per delivery.
func (p *Pool) recoverInFlight(ctx context.Context) {
	recovered := 0
	iter := p.rdb.Scan(ctx, 0, p.queue+":procesando:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		for {
			err := p.rdb.LMove(ctx, key, p.queue, "RIGHT", "RIGHT").Err()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("worker: recover in-flight failed")
				break
			}
			recovered++
		}
	}
	if err := iter.Err(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("worker: scan processing lists failed")
	}
	if recovered > 0 {
		log.Warn().Int("jobs", recovered).Str("queue", p.queue).Msg("worker: requeued in-flight jobs")
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	processing := ProcessingKey(p.queue, id)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking move: waits up to 5s then loops to check ctx
			raw, err := p.rdb.BLMove(ctx, p.queue, processing, "RIGHT", "LEFT", 5*time.Second).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: blmove failed")
					time.Sleep(time.Second)
				}
				continue
			}
			p.handle(ctx, processing, raw)
		}
	}
}

// handle runs one job and then clears it from the processing list. A job cut
// short by shutdown goes back to the consumer end of the queue instead.
func (p *Pool) handle(ctx context.Context, processing, raw string) {
	err := p.dispatch(ctx, p.queue, raw)
	bg := context.WithoutCancel(ctx)

	if err != nil && ctx.Err() != nil {
		_, perr := p.rdb.TxPipelined(bg, func(pipe redis.Pipeliner) error {
			pipe.LRem(bg, processing, 1, raw)
			pipe.RPush(bg, p.queue, raw)
			return nil
		})
		if perr != nil {
			// Still in the processing list; the next Run recovers it.
			log.Error().Err(perr).Str("queue", p.queue).Msg("worker: requeue after shutdown failed")
			return
		}
		log.Info().Str("queue", p.queue).Msg("worker: interrupted job requeued")
		return
	}
	if err := p.rdb.LRem(bg, processing, 1, raw).Err(); err != nil {
		log.Warn().Err(err).Str("key", processing).Msg("worker: ack failed")
	}
}

func (p *Pool) dispatch(ctx context.Context, queue, raw string) error {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return err
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		return fmt.Errorf("job type %q sin handler", job.Type)
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("processing job")
	if err := h.Process(ctx, job.Payload); err != nil {
		log.Error().Err(err).Str("type", job.Type).Str("queue", queue).Msg("job failed")
		return err
	}
	return nil
}
