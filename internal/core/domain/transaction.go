package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction is the data structure representing a bridge transaction entity.
// It is mutated only through its transition methods and persisted as a whole
// on every transition.
type Transaction struct {
	Id           string
	OwnerAddress string
	Status       TxStatus
	SourceChain  string
	DestChain    string
	SourceAsset  string
	DestAsset    string
	FromAmount   string
	ToAmount     string
	SourceTxHash string
	DestTxHash   string
	ProviderName string
	CreatedAt    int64
	CompletedAt  int64
	Error        string
}

// NewTransaction returns a transaction with a new id, Idle status and the
// owner address normalized to lowercase. The owner is set once here and never
// reassigned.
func NewTransaction(ownerAddress string) *Transaction {
	return &Transaction{
		Id:           uuid.New().String(),
		OwnerAddress: NormalizeAddress(ownerAddress),
		Status:       IdleTxStatus,
		CreatedAt:    time.Now().Unix(),
	}
}

// NormalizeAddress lowercases an account address so that ownership checks are
// case-insensitive.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Submit brings an Idle transaction to the CheckingApproval status, filling
// the trade legs from the accepted quote.
func (t *Transaction) Submit(q Quote) (bool, error) {
	if t.Status.Failed {
		return false, ErrTxAlreadyTerminal
	}
	if t.Status.Code >= TxStatusCodeCheckingApproval {
		return true, nil
	}

	t.SourceChain = q.FromChain
	t.DestChain = q.ToChain
	t.SourceAsset = q.FromAsset
	t.DestAsset = q.ToAsset
	t.FromAmount = q.FromAmount
	t.ToAmount = q.ToAmount
	t.ProviderName = q.ProviderName
	t.Status = CheckingApprovalTxStatus
	return true, nil
}

// RequireApproval brings a transaction from the CheckingApproval to the
// AwaitingApproval status when the current allowance does not cover the trade.
func (t *Transaction) RequireApproval() (bool, error) {
	if t.Status.Failed {
		return false, ErrTxAlreadyTerminal
	}
	if t.Status.Code >= TxStatusCodeAwaitingApproval {
		return true, nil
	}
	if t.Status.Code != TxStatusCodeCheckingApproval {
		return false, ErrTxMustBeCheckingApproval
	}

	t.Status = AwaitingApprovalTxStatus
	return true, nil
}

// StartApproval brings a transaction from the AwaitingApproval to the
// Approving status once the user confirmed the allowance grant.
func (t *Transaction) StartApproval() (bool, error) {
	if t.Status.Failed {
		return false, ErrTxAlreadyTerminal
	}
	if t.Status.Code >= TxStatusCodeApproving {
		return true, nil
	}
	if t.Status.Code != TxStatusCodeAwaitingApproval {
		return false, ErrTxMustBeAwaitingApproval
	}

	t.Status = ApprovingTxStatus
	return true, nil
}

// SendSource brings a transaction to the PendingSource status, recording the
// dispatched source-chain tx hash. It is reachable from CheckingApproval when
// no allowance grant is needed, or from Approving once the approval confirmed.
func (t *Transaction) SendSource(sourceTxHash string) (bool, error) {
	if t.Status.Failed {
		return false, ErrTxAlreadyTerminal
	}
	if t.Status.Code >= TxStatusCodePendingSource {
		return true, nil
	}
	if t.Status.Code != TxStatusCodeCheckingApproval &&
		t.Status.Code != TxStatusCodeApproving {
		return false, ErrTxMustBeCheckingApprovalOrApproving
	}
	if len(sourceTxHash) <= 0 {
		return false, ErrTxMissingSourceTxHash
	}

	t.SourceTxHash = sourceTxHash
	t.Status = PendingSourceTxStatus
	return true, nil
}

// ConfirmSource brings a transaction from the PendingSource to the Bridging
// status once the provider observed the source tx as confirmed.
func (t *Transaction) ConfirmSource() (bool, error) {
	if t.Status.Failed {
		return false, ErrTxAlreadyTerminal
	}
	if t.Status.Code >= TxStatusCodeBridging {
		return true, nil
	}
	if t.Status.Code != TxStatusCodePendingSource {
		return false, ErrTxMustBePendingSource
	}

	t.Status = BridgingTxStatus
	return true, nil
}

// Complete brings a transaction from the Bridging to the terminal Completed
// status. DestTxHash and CompletedAt are set here and nowhere else.
func (t *Transaction) Complete(destTxHash, destAmount string) (bool, error) {
	if t.Status.Failed {
		return false, ErrTxAlreadyTerminal
	}
	if t.Status.Code == TxStatusCodeCompleted {
		return true, nil
	}
	if t.Status.Code != TxStatusCodeBridging {
		return false, ErrTxMustBeBridging
	}
	if len(destTxHash) <= 0 {
		return false, ErrTxMissingDestTxHash
	}

	t.DestTxHash = destTxHash
	if len(destAmount) > 0 {
		t.ToAmount = destAmount
	}
	t.CompletedAt = time.Now().Unix()
	t.Status = CompletedTxStatus
	return true, nil
}

// Fail marks the transaction as terminally failed with a human readable
// reason. It is only reachable from the CheckingApproval, Approving,
// PendingSource and Bridging statuses.
func (t *Transaction) Fail(reason string) (bool, error) {
	if t.Status.Failed {
		return true, nil
	}
	if t.Status.Code == TxStatusCodeCompleted {
		return false, ErrTxAlreadyTerminal
	}

	switch t.Status.Code {
	case TxStatusCodeCheckingApproval, TxStatusCodeApproving,
		TxStatusCodePendingSource, TxStatusCodeBridging:
	default:
		return false, ErrTxNotFailable
	}

	t.Error = reason
	t.Status.Failed = true
	return true, nil
}

// IsOwnedBy returns whether the transaction belongs to the given account,
// compared case-insensitively.
func (t *Transaction) IsOwnedBy(ownerAddress string) bool {
	return t.OwnerAddress == NormalizeAddress(ownerAddress)
}

// IsTerminal returns whether the transaction admits no further transitions.
func (t *Transaction) IsTerminal() bool {
	return t.Status.Failed || t.Status.Code == TxStatusCodeCompleted
}

// IsPending returns whether the transaction still has a transition ahead.
func (t *Transaction) IsPending() bool {
	return !t.IsTerminal()
}

// IsPollable returns whether the transaction is in a status driven forward by
// the status poller rather than by user action.
func (t *Transaction) IsPollable() bool {
	if t.Status.Failed {
		return false
	}
	return t.Status.Code == TxStatusCodePendingSource ||
		t.Status.Code == TxStatusCodeBridging
}

// IsCompleted returns whether the transaction is in Completed status.
func (t *Transaction) IsCompleted() bool {
	return t.Status.Code == TxStatusCodeCompleted && !t.Status.Failed
}

// IsFailed returns whether the transaction has terminally failed.
func (t *Transaction) IsFailed() bool {
	return t.Status.Failed
}
