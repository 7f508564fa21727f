package worker

// conciliacion_worker.go
// Processes delivery-created events from QueueConciliacion: applies the
// delivery's pending effects through ConciliarEntrega with exponential backoff
// and dead-letters the job when every attempt fails.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"repartos/internal/dto"
	"repartos/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrInterrumpido marks a job abandoned because its context was cancelled.
// The job is not dead-lettered; the pool returns it to the queue.
var ErrInterrumpido = errors.New("conciliacion interrumpida")

// Conciliador is the part of service.ConciliacionService the worker needs.
type Conciliador interface {
	ConciliarEntrega(ctx context.Context, tenantID, entregaID uuid.UUID) (*dto.ConciliacionResponse, error)
}

// DeadLetterSink stores jobs that exhausted their retries.
type DeadLetterSink interface {
	Send(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int)
}

type ConciliacionWorker struct {
	svc         Conciliador
	dlq         DeadLetterSink
	maxAttempts int
	baseDelay   time.Duration
}

func NewConciliacionWorker(svc Conciliador, dlq DeadLetterSink, maxAttempts int) *ConciliacionWorker {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &ConciliacionWorker{svc: svc, dlq: dlq, maxAttempts: maxAttempts, baseDelay: time.Second}
}

// Process handles one conciliacion job:
//  1. Parse ConciliacionPayload
//  2. ConciliarEntrega with backoff (1s, 2s, ...) on transient errors
//  3. Not-found and validation errors are permanent: no retry
//  4. Dead-letter the payload if it never succeeded, unless ctx was cancelled:
//     then return ErrInterrumpido and let the pool requeue it
func (w *ConciliacionWorker) Process(ctx context.Context, raw json.RawMessage) error {
	// Dead-lettering must survive a shutdown that cancels ctx.
	dlqCtx := context.WithoutCancel(ctx)

	var payload ConciliacionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		w.dlq.Send(dlqCtx, QueueConciliacion, JobConciliacion, raw, "payload invalido: "+err.Error(), 0)
		return err
	}
	tenantID, err1 := uuid.Parse(payload.TenantID)
	entregaID, err2 := uuid.Parse(payload.EntregaID)
	if err := errors.Join(err1, err2); err != nil {
		w.dlq.Send(dlqCtx, QueueConciliacion, JobConciliacion, raw, "ids invalidos: "+err.Error(), 0)
		return err
	}

	var permanente error
	attempts := 0
	err := withRetry(ctx, w.maxAttempts, w.baseDelay, func(attempt int) error {
		attempts = attempt + 1
		resp, err := w.svc.ConciliarEntrega(ctx, tenantID, entregaID)
		if err == nil {
			log.Info().
				Str("entrega_id", entregaID.String()).
				Bool("sin_cambios", resp != nil && resp.SinCambios).
				Int("attempt", attempt+1).
				Msg("conciliacion_worker: entrega conciliada")
			return nil
		}
		if esPermanente(err) {
			permanente = err
			return nil
		}
		log.Warn().Err(err).
			Str("entrega_id", entregaID.String()).
			Int("attempt", attempt+1).
			Msg("conciliacion_worker: intento fallido")
		return err
	})
	if permanente != nil {
		err = permanente
	} else if err != nil && ctx.Err() != nil {
		log.Warn().
			Str("entrega_id", entregaID.String()).
			Int("attempt", attempts).
			Msg("conciliacion_worker: interrumpida, el job vuelve a la cola")
		return fmt.Errorf("%w: %w", ErrInterrumpido, ctx.Err())
	}
	if err != nil {
		w.dlq.Send(dlqCtx, QueueConciliacion, JobConciliacion, raw,
			fmt.Sprintf("conciliacion fallida tras %d intentos: %s", attempts, err.Error()), attempts)
		return err
	}
	return nil
}

func esPermanente(err error) bool {
	var nf *service.NotFoundError
	var ve *service.ValidationError
	return errors.As(err, &nf) || errors.As(err, &ve)
}

// withRetry calls fn up to maxAttempts times, waiting base, 2×base, ... between
// attempts. It returns the last error, or ctx.Err() if cancelled while waiting.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * base
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
