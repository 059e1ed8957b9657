package utils

import (
	"context"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"
	"wagerbook/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// RecordTransaction appends a ledger entry and emits the matching balance change event.
// This is the single entry point for all balance-affecting entries in the system.
func RecordTransaction(ctx context.Context, transactionRepo interfaces.TransactionRepository, eventPublisher interfaces.EventPublisher, tx *entities.Transaction) error {
	if tx.Status == "" {
		tx.Status = entities.TransactionStatusCompleted
	}
	if err := transactionRepo.Record(ctx, tx); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:          tx.UserID,
		Currency:        tx.Currency,
		OldBalance:      tx.BalanceAfter - tx.Amount,
		NewBalance:      tx.BalanceAfter,
		ChangeAmount:    tx.Amount,
		TransactionID:   tx.ID,
		TransactionKind: tx.Kind,
		WagerID:         tx.WagerID,
	}
	log.WithFields(log.Fields{
		"userID":          event.UserID,
		"currency":        event.Currency,
		"oldBalance":      event.OldBalance,
		"newBalance":      event.NewBalance,
		"transactionKind": event.TransactionKind,
		"changeAmount":    event.ChangeAmount,
	}).Debug("Publishing BalanceChangeEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}

	return nil
}
