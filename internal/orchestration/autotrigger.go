package orchestration

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrTriggerExhausted means the poller hit its attempt cap without the batch
// becoming processable.
var ErrTriggerExhausted = errors.New("auto-trigger attempts exhausted")

const (
	// DefaultTriggerInterval is how often the poller re-checks a batch.
	DefaultTriggerInterval = 3 * time.Second
	// MaxTriggerAttempts bounds how long a trigger keeps polling before
	// giving up.
	MaxTriggerAttempts = 10
)

// AutoTrigger watches a freshly imported batch and kicks the discovery flow
// forward as soon as the batch row is visible. Each Watch call polls on a
// fixed interval for a bounded number of attempts, so a batch that never
// lands cannot leak a goroutine.
type AutoTrigger struct {
	orch     *Orchestrator
	interval time.Duration
	attempts int
}

// NewAutoTrigger builds a trigger with the default interval and attempt cap.
func NewAutoTrigger(o *Orchestrator) *AutoTrigger {
	return &AutoTrigger{
		orch:     o,
		interval: DefaultTriggerInterval,
		attempts: MaxTriggerAttempts,
	}
}

// WithInterval overrides the poll interval.
func (t *AutoTrigger) WithInterval(d time.Duration) *AutoTrigger {
	if d > 0 {
		t.interval = d
	}
	return t
}

// WithAttempts overrides the attempt cap.
func (t *AutoTrigger) WithAttempts(n int) *AutoTrigger {
	if n > 0 {
		t.attempts = n
	}
	return t
}

// Watch starts a poller for one flow/batch pair. It returns immediately; the
// poller runs until the batch is ready, the attempt cap is reached, or ctx is
// cancelled. done receives the outcome and may be nil.
func (t *AutoTrigger) Watch(ctx context.Context, tenantID, flowID, batchID string, done chan<- error) {
	go func() {
		err := t.poll(ctx, tenantID, flowID, batchID)
		if done != nil {
			done <- err
		}
	}()
}

func (t *AutoTrigger) poll(ctx context.Context, tenantID, flowID, batchID string) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= t.attempts; attempt++ {
		select {
		case <-ctx.Done():
			log.Printf("auto-trigger for flow %s cancelled after %d attempts", flowID, attempt-1)
			return ctx.Err()
		case <-ticker.C:
		}

		batch, err := t.orch.Store().GetImportBatch(ctx, tenantID, batchID)
		if err != nil {
			log.Printf("auto-trigger attempt %d/%d: batch %s not visible yet: %v",
				attempt, t.attempts, batchID, err)
			continue
		}
		if batch.Status != "received" {
			// Another worker already moved it along.
			log.Printf("auto-trigger for flow %s: batch %s already %s, standing down",
				flowID, batchID, batch.Status)
			return nil
		}

		// First advance settles the import phase, the second one kicks off
		// field mapping.
		if _, err := t.orch.AdvancePhase(ctx, tenantID, flowID, ActorSystem); err != nil {
			log.Printf("auto-trigger attempt %d/%d: failed to advance flow %s: %v",
				attempt, t.attempts, flowID, err)
			continue
		}
		if _, err := t.orch.AdvancePhase(ctx, tenantID, flowID, ActorSystem); err != nil {
			log.Printf("auto-trigger attempt %d/%d: failed to start field mapping for flow %s: %v",
				attempt, t.attempts, flowID, err)
			continue
		}
		log.Printf("auto-trigger: flow %s advanced for batch %s on attempt %d", flowID, batchID, attempt)
		return nil
	}

	log.Printf("auto-trigger giving up on flow %s after %d attempts; batch %s never became processable",
		flowID, t.attempts, batchID)
	return ErrTriggerExhausted
}
