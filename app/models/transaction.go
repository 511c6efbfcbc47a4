package models

import "time"

const (
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is an append-only ledger entry for provider payment events.
// The (provider, provider_transaction_id) pair is unique so replayed
// deliveries cannot create duplicate entries.
type Transaction struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	Provider               string     `gorm:"type:varchar(20);not null;index:ux_transactions_provider_txid,unique,priority:1" json:"provider"`
	ProviderTransactionID  string     `gorm:"type:varchar(191);not null;index:ux_transactions_provider_txid,unique,priority:2" json:"provider_transaction_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_subscription_id"`
	UserID                 uint       `gorm:"index" json:"user_id"`
	Status                 string     `gorm:"type:varchar(32);not null" json:"status"`
	AmountTotal            string     `gorm:"type:varchar(32);default:''" json:"amount_total"`
	Currency               string     `gorm:"type:varchar(8);default:''" json:"currency"`
	BilledAt               *time.Time `gorm:"type:timestamp;default:null" json:"billed_at,omitempty"`
	RawPayloadJSON         string     `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
