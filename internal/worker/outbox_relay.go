package worker

// outbox_relay.go
// Periodically re-publishes delivery-created events that the request path
// could not hand to Redis. Publishing goes through the Circuit Breaker so a
// downed Redis is not hammered every tick.

import (
	"context"
	"time"

	"repartos/internal/infra"
	"repartos/internal/repository"
	"repartos/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const (
	defaultRelayInterval = 15 * time.Second
	relayBatchSize       = 50
	maxRelayBackoff      = 10 * time.Minute
)

// OutboxRelayConfig holds all dependencies for the relay job.
type OutboxRelayConfig struct {
	Eventos    repository.EventoRepository
	Publicador service.Publicador
	CB         *infra.CircuitBreaker
	Interval   time.Duration
	BatchSize  int
	Now        func() time.Time
}

// StartOutboxRelay schedules RelayOnce with gocron and blocks until ctx is done.
func StartOutboxRelay(ctx context.Context, cfg OutboxRelayConfig) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultRelayInterval
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			RelayOnce(ctx, cfg)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	log.Info().Dur("interval", interval).Msg("outbox_relay: started")

	<-ctx.Done()
	log.Info().Msg("outbox_relay: shutting down")
	return scheduler.Shutdown()
}

// RelayOnce publishes one batch of pending events and returns how many were
// published.
func RelayOnce(ctx context.Context, cfg OutboxRelayConfig) int {
	// If CB is open, skip entirely
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("outbox_relay: circuit breaker is open, skipping tick")
		return 0
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = relayBatchSize
	}

	eventos, err := cfg.Eventos.ListPendientes(ctx, now(), batch)
	if err != nil {
		log.Error().Err(err).Msg("outbox_relay: failed to query pending events")
		return 0
	}
	if len(eventos) == 0 {
		return 0
	}
	log.Info().Int("count", len(eventos)).Msg("outbox_relay: publishing pending events")

	publicados := 0
	for i := range eventos {
		ev := &eventos[i]

		// Check CB state before each call: it may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("outbox_relay: circuit breaker opened mid-batch, stopping")
			break
		}

		cbErr := cfg.CB.Execute(func() error {
			return cfg.Publicador.EnqueueConciliacion(ctx, ev.TenantID, ev.EntregaID)
		})
		if cbErr != nil {
			next := now().Add(computeRetryBackoff(ev.Intentos + 1))
			if err := cfg.Eventos.RegistrarFallo(ctx, ev.ID, cbErr.Error(), next); err != nil {
				log.Error().Err(err).Str("evento_id", ev.ID.String()).Msg("outbox_relay: failed to record failure")
			}
			log.Warn().Err(cbErr).
				Str("entrega_id", ev.EntregaID.String()).
				Int("intentos", ev.Intentos+1).
				Time("next_retry_at", next).
				Msg("outbox_relay: publish failed")
			continue
		}

		if err := cfg.Eventos.MarcarPublicado(ctx, ev.ID, now()); err != nil {
			// The event will be re-sent next tick; consumers are idempotent.
			log.Error().Err(err).Str("evento_id", ev.ID.String()).Msg("outbox_relay: failed to mark published")
			continue
		}
		publicados++
	}
	return publicados
}

// computeRetryBackoff returns 30s, 60s, 120s, ... capped at maxRelayBackoff.
func computeRetryBackoff(intentos int) time.Duration {
	if intentos < 1 {
		intentos = 1
	}
	if intentos > 10 {
		return maxRelayBackoff
	}
	d := time.Duration(1<<uint(intentos-1)) * 30 * time.Second
	if d > maxRelayBackoff {
		return maxRelayBackoff
	}
	return d
}
