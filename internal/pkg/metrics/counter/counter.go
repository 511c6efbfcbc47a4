package counter

import (
	"context"
	"fmt"

	"github.com/blockforge/blockforge/internal/pkg/cache"
)

const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

func webhookKey(outcome string) string {
	return fmt.Sprintf("webhook:counters:%s", outcome)
}

// AddWebhookOutcome increments the counter for an event type under the given
// outcome in Redis. Best-effort: callers log and ignore errors.
func AddWebhookOutcome(outcome, eventType string) error {
	ctx := context.Background()
	if eventType == "" {
		eventType = "unknown"
	}
	return cache.GetClient().HIncrBy(ctx, webhookKey(outcome), eventType, 1).Err()
}

// WebhookSnapshot returns all webhook counters grouped by outcome.
func WebhookSnapshot() (map[string]map[string]string, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	out := make(map[string]map[string]string)
	for _, outcome := range []string{OutcomeProcessed, OutcomeIgnored, OutcomeFailed, OutcomeRejected} {
		fields, err := rdb.HGetAll(ctx, webhookKey(outcome)).Result()
		if err != nil {
			return nil, err
		}
		out[outcome] = fields
	}
	return out, nil
}
