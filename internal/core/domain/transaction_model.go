package domain

const (
	// TxStatusCodeIdle is the status of a transaction created but not yet
	// submitted to the lifecycle.
	TxStatusCodeIdle = iota
	// TxStatusCodeCheckingApproval is the status of a submitted transaction
	// whose source asset allowance is being inspected.
	TxStatusCodeCheckingApproval
	// TxStatusCodeAwaitingApproval is the status of a transaction waiting for
	// the user to confirm the allowance grant.
	TxStatusCodeAwaitingApproval
	// TxStatusCodeApproving is the status of a transaction whose approval has
	// been dispatched to the external signer.
	TxStatusCodeApproving
	// TxStatusCodePendingSource is the status of a transaction whose
	// source-chain tx has been dispatched and is not yet confirmed.
	TxStatusCodePendingSource
	// TxStatusCodeBridging is the status of a transaction whose source tx is
	// confirmed and whose destination tx is being awaited.
	TxStatusCodeBridging
	// TxStatusCodeCompleted is the terminal status of a transaction confirmed
	// on the destination chain.
	TxStatusCodeCompleted
)

var (
	// IdleTxStatus represents the status of a newly created transaction.
	IdleTxStatus = TxStatus{Code: TxStatusCodeIdle}
	// CheckingApprovalTxStatus represents the status of a submitted
	// transaction with the allowance check in progress.
	CheckingApprovalTxStatus = TxStatus{Code: TxStatusCodeCheckingApproval}
	// AwaitingApprovalTxStatus represents the status of a transaction blocked
	// on user confirmation of the allowance grant.
	AwaitingApprovalTxStatus = TxStatus{Code: TxStatusCodeAwaitingApproval}
	// ApprovingTxStatus represents the status of a transaction with the
	// approval tx in flight.
	ApprovingTxStatus = TxStatus{Code: TxStatusCodeApproving}
	// PendingSourceTxStatus represents the status of a transaction with the
	// source-chain tx in flight.
	PendingSourceTxStatus = TxStatus{Code: TxStatusCodePendingSource}
	// BridgingTxStatus represents the status of a transaction waiting for the
	// destination-chain tx.
	BridgingTxStatus = TxStatus{Code: TxStatusCodeBridging}
	// CompletedTxStatus represents the status of a settled transaction.
	CompletedTxStatus = TxStatus{Code: TxStatusCodeCompleted}
)

// TxStatus represents the different statuses that a bridge transaction can
// assume. Failed marks the status as terminal regardless of the code.
type TxStatus struct {
	Code   int
	Failed bool
}

func (s TxStatus) String() string {
	if s.Failed {
		return "failed"
	}
	switch s.Code {
	case TxStatusCodeIdle:
		return "idle"
	case TxStatusCodeCheckingApproval:
		return "checking-approval"
	case TxStatusCodeAwaitingApproval:
		return "awaiting-approval"
	case TxStatusCodeApproving:
		return "approving"
	case TxStatusCodePendingSource:
		return "pending-source"
	case TxStatusCodeBridging:
		return "bridging"
	case TxStatusCodeCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
