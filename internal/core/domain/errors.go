package domain

import "errors"

var (
	// ErrTransactionNotFound ...
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTxAlreadyTerminal is thrown when trying to transition a completed or
	// failed transaction.
	ErrTxAlreadyTerminal = errors.New("transaction is in a terminal status")
	// ErrTxMustBeCheckingApproval ...
	ErrTxMustBeCheckingApproval = errors.New("transaction must be in checking-approval status")
	// ErrTxMustBeAwaitingApproval ...
	ErrTxMustBeAwaitingApproval = errors.New("transaction must be in awaiting-approval status")
	// ErrTxMustBeCheckingApprovalOrApproving ...
	ErrTxMustBeCheckingApprovalOrApproving = errors.New("transaction must be in checking-approval or approving status")
	// ErrTxMustBePendingSource ...
	ErrTxMustBePendingSource = errors.New("transaction must be in pending-source status")
	// ErrTxMustBeBridging ...
	ErrTxMustBeBridging = errors.New("transaction must be in bridging status")
	// ErrTxNotFailable is thrown when failing a transaction from a status that
	// does not admit failure.
	ErrTxNotFailable = errors.New("transaction status does not admit failure")
	// ErrTxMissingSourceTxHash ...
	ErrTxMissingSourceTxHash = errors.New("source tx hash must not be null")
	// ErrTxMissingDestTxHash ...
	ErrTxMissingDestTxHash = errors.New("destination tx hash must not be null")
	// ErrTxInvalidOwner ...
	ErrTxInvalidOwner = errors.New("owner address is not valid")

	// ErrQuoteMissingChain ...
	ErrQuoteMissingChain = errors.New("source and destination chains must not be null")
	// ErrQuoteMissingAsset ...
	ErrQuoteMissingAsset = errors.New("source and destination assets must not be null")
	// ErrQuoteMissingSender ...
	ErrQuoteMissingSender = errors.New("sender address must not be null")
	// ErrQuoteInvalidAmount ...
	ErrQuoteInvalidAmount = errors.New("amount must be a positive number")
	// ErrQuoteSameAsset is thrown for a swap between identical assets on the
	// same chain.
	ErrQuoteSameAsset = errors.New("source and destination assets must differ")
)
