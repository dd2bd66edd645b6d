package domain

import "context"

// TransactionRepository gives access to the durable collection of bridge
// transactions. Every read is scoped by owner and every write goes through
// UpdateTransaction so that transitions for one id are never applied
// concurrently.
type TransactionRepository interface {
	// AddTransaction persists a new transaction, evicting the oldest
	// non-pending record of the same owner if the history cap is exceeded.
	AddTransaction(ctx context.Context, tx *Transaction) error
	// GetTransaction returns the transaction with the given id, or
	// ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// GetAllTransactionsForOwner returns every transaction of the given
	// owner, newest first.
	GetAllTransactionsForOwner(ctx context.Context, ownerAddress string) ([]Transaction, error)
	// GetPendingTransactionsForOwner returns the owner's transactions that
	// are not in a terminal status.
	GetPendingTransactionsForOwner(ctx context.Context, ownerAddress string) ([]Transaction, error)
	// UpdateTransaction applies updateFn to the stored transaction and
	// persists the full updated record atomically. Updates for the same id
	// are serialized.
	UpdateTransaction(
		ctx context.Context, id string,
		updateFn func(tx *Transaction) (*Transaction, error),
	) error
	// DeleteSettledTransactionsForOwner removes the owner's completed and
	// failed transactions. Pending ones are never removed.
	DeleteSettledTransactionsForOwner(ctx context.Context, ownerAddress string) error
}
