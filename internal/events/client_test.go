package events

import (
	"testing"
	"time"

	"budgetd/internal/core"
)

func TestNewTransactionCreatedMessage(t *testing.T) {
	tx := core.Transaction{
		ID:          "tx-1",
		UserID:      "u-1",
		Type:        core.TxExpense,
		AmountCents: -4500,
		BudgetMonth: core.Month("2026-08"),
		BillID:      "bill-9",
	}

	msg := NewTransactionCreatedMessage(tx)

	if msg.TxID != tx.ID {
		t.Errorf("NewTransactionCreatedMessage() TxID = %v, want %v", msg.TxID, tx.ID)
	}
	if msg.UserID != tx.UserID {
		t.Errorf("NewTransactionCreatedMessage() UserID = %v, want %v", msg.UserID, tx.UserID)
	}
	if msg.Type != string(core.TxExpense) {
		t.Errorf("NewTransactionCreatedMessage() Type = %v, want %v", msg.Type, core.TxExpense)
	}
	if msg.AmountCents != -4500 {
		t.Errorf("NewTransactionCreatedMessage() AmountCents = %v, want %v", msg.AmountCents, -4500)
	}
	if msg.BudgetMonth != "2026-08" {
		t.Errorf("NewTransactionCreatedMessage() BudgetMonth = %v, want %v", msg.BudgetMonth, "2026-08")
	}
	if msg.Timestamp.IsZero() {
		t.Error("NewTransactionCreatedMessage() Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewTransactionCreatedMessage() Timestamp should be recent")
	}
}

func TestTransactionCreatedMessage_JSON(t *testing.T) {
	timestamp := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msg := &TransactionCreatedMessage{
		TxID:        "tx-1",
		UserID:      "u-1",
		Type:        "income",
		AmountCents: 250000,
		BudgetMonth: "2026-08",
		SourceID:    "src-1",
		Timestamp:   timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsedMsg, err := TransactionCreatedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("TransactionCreatedMessageFromJSON() error = %v", err)
	}

	if parsedMsg.TxID != msg.TxID {
		t.Errorf("Parsed TxID = %v, want %v", parsedMsg.TxID, msg.TxID)
	}
	if parsedMsg.AmountCents != msg.AmountCents {
		t.Errorf("Parsed AmountCents = %v, want %v", parsedMsg.AmountCents, msg.AmountCents)
	}
	if parsedMsg.SourceID != msg.SourceID {
		t.Errorf("Parsed SourceID = %v, want %v", parsedMsg.SourceID, msg.SourceID)
	}
	if !parsedMsg.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsedMsg.Timestamp, msg.Timestamp)
	}
}

func TestTransactionCreatedMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"amount_cents": "not_a_number"}`)

	_, err := TransactionCreatedMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("TransactionCreatedMessageFromJSON() should fail with invalid JSON")
	}
}

func TestOccurrenceOverdueMessage_JSON(t *testing.T) {
	due := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	occ := core.BillOccurrence{
		ID:      "occ-1",
		UserID:  "u-1",
		BillID:  "bill-9",
		DueDate: due,
	}

	msg := NewOccurrenceOverdueMessage(occ)
	if msg.OccurrenceID != occ.ID {
		t.Errorf("NewOccurrenceOverdueMessage() OccurrenceID = %v, want %v", msg.OccurrenceID, occ.ID)
	}
	if !msg.DueDate.Equal(due) {
		t.Errorf("NewOccurrenceOverdueMessage() DueDate = %v, want %v", msg.DueDate, due)
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsedMsg, err := OccurrenceOverdueMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("OccurrenceOverdueMessageFromJSON() error = %v", err)
	}

	if parsedMsg.BillID != msg.BillID {
		t.Errorf("Parsed BillID = %v, want %v", parsedMsg.BillID, msg.BillID)
	}
	if !parsedMsg.DueDate.Equal(msg.DueDate) {
		t.Errorf("Parsed DueDate = %v, want %v", parsedMsg.DueDate, msg.DueDate)
	}
}
