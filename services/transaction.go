package services

import (
	"context"
	"fmt"

	"github.com/upb/coffee-shop/repositories"
)

// TxFunc is a unit of work run inside a transaction. Its ctx routes repository
// calls through tx.
type TxFunc[T any] func(ctx context.Context, tx repositories.Transaction) (T, error)

// WithTransactionResult runs fn in a transaction and returns its result.
// The transaction commits when fn succeeds and rolls back when it fails or panics.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn TxFunc[T]) (result T, err error) {
	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return result, ErrTransactionFailed.Wrap(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	result, err = fn(tx.Context(), tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			var zero T
			return zero, fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return result, err
	}

	if err := tx.Commit(); err != nil {
		var zero T
		return zero, ErrTransactionFailed.Wrap(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return result, nil
}

// WithTransaction runs fn in a transaction, committing on success
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	_, err := WithTransactionResult(ctx, txMgr, func(ctx context.Context, tx repositories.Transaction) (struct{}, error) {
		return struct{}{}, fn(ctx, tx)
	})
	return err
}
