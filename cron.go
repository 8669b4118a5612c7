package main

import (
	"context"
	"log/slog"
	"time"
)

const (
	cronStateKey      = "queue_sweep_last_run"
	generateBatchSize = 5
	minBodyLength     = 500
)

// runQueueLoop periodically sweeps the content store for entities that still
// need generated descriptions or SEO metadata. One sweep failure backs the
// loop off instead of hammering the provider.
func (s *Server) runQueueLoop(ctx context.Context) {
	var failures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.sweepInterval):
		}

		if err := s.processQueue(ctx); err != nil {
			failures++
			delay := delayForFailureCount(failures)
			slog.Error("queue sweep failed", "error", err, "retry_delay", delay)
			time.Sleep(delay)
			continue
		}
		failures = 0
	}
}

func delayForFailureCount(n int) time.Duration {
	if n < 5 {
		return (time.Second * 5) + (time.Second * 2 * time.Duration(n))
	}

	return time.Second * 30
}

// processQueue submits capped batches of generation work: bodies first, then
// missing SEO titles. Per-entity submission errors are logged and skipped so
// one bad entity can't stall the whole sweep.
func (s *Server) processQueue(ctx context.Context) error {
	kinds := []string{"post", "page", "product"}

	short, err := s.store.EntitiesMissingBody(ctx, kinds, minBodyLength, generateBatchSize)
	if err != nil {
		return err
	}
	for _, e := range short {
		if _, err := s.submitGeneration(ctx, JobKindGenerateContent, e.Kind, e.ID); err != nil {
			slog.Warn("failed to submit content generation", "entity", e.ID, "error", err)
			continue
		}
		if err := s.store.SetMeta(ctx, e.ID, metaKeyGenerated, metaGeneratedValue()); err != nil {
			slog.Warn("failed to flag entity as submitted", "entity", e.ID, "error", err)
		}
	}

	missingSEO, err := s.store.EntitiesMissingMeta(ctx, kinds, "seo_title", generateBatchSize)
	if err != nil {
		return err
	}
	for _, e := range missingSEO {
		if _, err := s.submitGeneration(ctx, JobKindGenerateSEO, e.Kind, e.ID); err != nil {
			slog.Warn("failed to submit seo generation", "entity", e.ID, "error", err)
		}
	}

	if err := storeStateInt(s.db, cronStateKey, time.Now().Unix()); err != nil {
		slog.Warn("failed to store sweep timestamp", "error", err)
	}

	return nil
}
