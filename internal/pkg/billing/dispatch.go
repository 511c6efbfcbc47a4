package billing

import (
	"context"

	"github.com/blockforge/blockforge/internal/pkg/paddle"
)

// Handler applies one event type's state transition.
type Handler func(ctx context.Context, ev *paddle.Event) Result

// Handlers returns the dispatch table mapping event types to their
// reconciliation routines. Types absent from the table are ignored by the
// endpoint, not rejected: the provider may introduce new event types before
// this integration handles them.
func (s *Service) Handlers() map[paddle.EventType]Handler {
	return map[paddle.EventType]Handler{
		paddle.EventSubscriptionCreated:      s.HandleSubscriptionCreated,
		paddle.EventSubscriptionUpdated:      s.HandleSubscriptionUpdated,
		paddle.EventSubscriptionCanceled:     s.HandleSubscriptionCanceled,
		paddle.EventTransactionCompleted:     s.HandleTransactionCompleted,
		paddle.EventTransactionPaymentFailed: s.HandleTransactionPaymentFailed,
	}
}

// Dispatch routes a verified event to its handler. The bool is false when the
// event type is unrecognized.
func (s *Service) Dispatch(ctx context.Context, ev *paddle.Event) (bool, Result) {
	handler, ok := s.Handlers()[ev.Type]
	if !ok {
		return false, OK()
	}
	return true, handler(ctx, ev)
}
