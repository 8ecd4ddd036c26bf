// Package events publishes ledger events over AMQP for downstream
// consumers (notification senders, external mirrors). Delivery is
// best-effort: the ledger write of record never depends on it.
package events

import (
	"encoding/json"
	"time"

	"budgetd/internal/core"
)

// Routing keys for the ledger exchange.
const (
	KeyTransactionCreated = "transaction.created"
	KeyOccurrenceOverdue  = "occurrence.overdue"
)

// TransactionCreatedMessage announces a new ledger transaction. It carries
// ids and cents only; consumers fetch anything else themselves.
type TransactionCreatedMessage struct {
	TxID        string    `json:"tx_id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	BudgetMonth string    `json:"budget_month"`
	BillID      string    `json:"bill_id,omitempty"`
	SourceID    string    `json:"source_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewTransactionCreatedMessage builds the message for a transaction.
func NewTransactionCreatedMessage(tx core.Transaction) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		TxID:        tx.ID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		AmountCents: tx.AmountCents,
		BudgetMonth: string(tx.BudgetMonth),
		BillID:      tx.BillID,
		SourceID:    tx.SourceID,
		Timestamp:   time.Now(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// OccurrenceOverdueMessage announces a bill occurrence going overdue.
type OccurrenceOverdueMessage struct {
	OccurrenceID string    `json:"occurrence_id"`
	UserID       string    `json:"user_id"`
	BillID       string    `json:"bill_id"`
	DueDate      time.Time `json:"due_date"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewOccurrenceOverdueMessage(o core.BillOccurrence) *OccurrenceOverdueMessage {
	return &OccurrenceOverdueMessage{
		OccurrenceID: o.ID,
		UserID:       o.UserID,
		BillID:       o.BillID,
		DueDate:      o.DueDate,
		Timestamp:    time.Now(),
	}
}

func (m *OccurrenceOverdueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func OccurrenceOverdueMessageFromJSON(data []byte) (*OccurrenceOverdueMessage, error) {
	var msg OccurrenceOverdueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
