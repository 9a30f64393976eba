package verify

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

const (
	batchSize       = 50
	defaultPoll     = 5 * time.Minute
	defaultBackoff  = time.Minute
	perItemInterval = time.Second
)

// Service polls for unverified opportunities and runs them through the
// verifier, pacing source-site probes to one per second.
type Service struct {
	verifier *Verifier
	limiter  *rate.Limiter

	pollInterval time.Duration
	backoff      time.Duration
}

func NewService(verifier *Verifier) *Service {
	return &Service{
		verifier:     verifier,
		limiter:      rate.NewLimiter(rate.Every(perItemInterval), 1),
		pollInterval: defaultPoll,
		backoff:      defaultBackoff,
	}
}

// Run loops until the context is cancelled. An empty batch waits out the poll
// interval; a failed batch retries sooner.
func (s *Service) Run(ctx context.Context) {
	log.Printf("verifier: service started")
	for {
		wait := s.pollInterval
		n, err := s.RunBatch(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Printf("verifier: batch failed: %v", err)
			wait = s.backoff
		case n > 0:
			log.Printf("verifier: processed %d opportunities", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// RunBatch verifies up to one batch of pending opportunities. A failure on
// one opportunity is logged and does not stop the rest of the batch.
func (s *Service) RunBatch(ctx context.Context) (int, error) {
	opps, err := s.verifier.store.UnverifiedOpportunities(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, opp := range opps {
		if err := s.limiter.Wait(ctx); err != nil {
			return processed, err
		}
		score, verified, err := s.verifier.VerifyOpportunity(ctx, opp)
		if err != nil {
			if ctx.Err() != nil {
				return processed, ctx.Err()
			}
			log.Printf("verifier: %s failed: %v", opp.ID, err)
			continue
		}
		processed++
		log.Printf("verifier: %s scored %.2f (verified=%t)", opp.ID, score, verified)
	}
	return processed, nil
}
