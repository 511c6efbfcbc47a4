package paddle

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EventType identifies the webhook event variant.
type EventType string

const (
	EventSubscriptionCreated      EventType = "subscription.created"
	EventSubscriptionUpdated      EventType = "subscription.updated"
	EventSubscriptionCanceled     EventType = "subscription.canceled"
	EventTransactionCompleted     EventType = "transaction.completed"
	EventTransactionPaymentFailed EventType = "transaction.payment_failed"
	EventUnknown                  EventType = "unknown"
)

// ParseEventType normalizes a raw event_type string. Unrecognized values map
// to EventUnknown; the provider introducing new types is not an error.
func ParseEventType(raw string) EventType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "subscription.created":
		return EventSubscriptionCreated
	case "subscription.updated":
		return EventSubscriptionUpdated
	case "subscription.canceled", "subscription.cancelled":
		return EventSubscriptionCanceled
	case "transaction.completed":
		return EventTransactionCompleted
	case "transaction.payment_failed":
		return EventTransactionPaymentFailed
	default:
		return EventUnknown
	}
}

// CustomData carries checkout metadata set by our frontend. Older checkout
// flows used camelCase keys, so both spellings are accepted.
type CustomData struct {
	UserID    string `json:"user_id"`
	UserIDAlt string `json:"userId"`
}

// UserRef returns the user-identifying reference, whichever key carried it.
func (c *CustomData) UserRef() string {
	if c == nil {
		return ""
	}
	if ref := strings.TrimSpace(c.UserID); ref != "" {
		return ref
	}
	return strings.TrimSpace(c.UserIDAlt)
}

// SubscriptionData is the payload shape of subscription.* events.
type SubscriptionData struct {
	ID                   string      `json:"id"`
	Status               string      `json:"status"`
	CustomData           *CustomData `json:"custom_data"`
	Items                []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
	CurrentBillingPeriod *struct {
		EndsAt *time.Time `json:"ends_at"`
	} `json:"current_billing_period"`
	NextBilledAt    *time.Time `json:"next_billed_at"`
	CanceledAt      *time.Time `json:"canceled_at"`
	ScheduledChange *struct {
		Action      string     `json:"action"`
		EffectiveAt *time.Time `json:"effective_at"`
	} `json:"scheduled_change"`
}

// PriceID returns the price reference of the first line item, if any.
func (d *SubscriptionData) PriceID() string {
	if d == nil || len(d.Items) == 0 {
		return ""
	}
	return strings.TrimSpace(d.Items[0].Price.ID)
}

// PeriodEnd returns the end of the current billing period, preferring the
// explicit period object over next_billed_at.
func (d *SubscriptionData) PeriodEnd() *time.Time {
	if d == nil {
		return nil
	}
	if d.CurrentBillingPeriod != nil && d.CurrentBillingPeriod.EndsAt != nil {
		return d.CurrentBillingPeriod.EndsAt
	}
	return d.NextBilledAt
}

// CancelAtPeriodEnd reports whether a cancellation is scheduled for the end
// of the current period rather than effective immediately.
func (d *SubscriptionData) CancelAtPeriodEnd() bool {
	return d != nil && d.ScheduledChange != nil && strings.EqualFold(d.ScheduledChange.Action, "cancel")
}

// TransactionData is the payload shape of transaction.* events.
type TransactionData struct {
	ID             string      `json:"id"`
	SubscriptionID string      `json:"subscription_id"`
	CustomerID     string      `json:"customer_id"`
	Status         string      `json:"status"`
	CustomData     *CustomData `json:"custom_data"`
	Details        *struct {
		Totals *struct {
			Total    string `json:"total"`
			Currency string `json:"currency_code"`
		} `json:"totals"`
	} `json:"details"`
	BilledAt *time.Time `json:"billed_at"`
}

// Totals returns the transaction amount and currency, empty when absent.
func (d *TransactionData) Totals() (string, string) {
	if d == nil || d.Details == nil || d.Details.Totals == nil {
		return "", ""
	}
	return d.Details.Totals.Total, d.Details.Totals.Currency
}

// Event is the parsed webhook envelope: a tagged union keyed by Type.
// Exactly one of Subscription/Transaction is set for known types; both are
// nil for EventUnknown.
type Event struct {
	EventID      string
	Type         EventType
	RawType      string
	OccurredAt   *time.Time
	Subscription *SubscriptionData
	Transaction  *TransactionData
	Raw          []byte
}

var ErrMissingEventType = errors.New("payload is missing event_type")

type envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt *time.Time      `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// ParseEvent decodes a raw webhook body into an Event. Unparsable JSON or a
// missing event_type is a hard error; an unrecognized event_type is not.
func ParseEvent(raw []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.EventType) == "" {
		return nil, ErrMissingEventType
	}

	ev := &Event{
		EventID:    strings.TrimSpace(env.EventID),
		Type:       ParseEventType(env.EventType),
		RawType:    env.EventType,
		OccurredAt: env.OccurredAt,
		Raw:        raw,
	}

	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled:
		var data SubscriptionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, err
		}
		ev.Subscription = &data
	case EventTransactionCompleted, EventTransactionPaymentFailed:
		var data TransactionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, err
		}
		ev.Transaction = &data
	}

	return ev, nil
}
