package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
)

// InMemoryTransactionRepository represents an in memory storage of bridge
// transactions. It mirrors the badger implementation and is mainly used by
// tests and ephemeral runs.
type InMemoryTransactionRepository struct {
	historyLimit int

	lock         *sync.RWMutex
	transactions map[string]domain.Transaction
}

// NewTransactionRepositoryImpl returns a new empty in memory repository
// keeping at most historyLimit records per owner.
func NewTransactionRepositoryImpl(historyLimit int) domain.TransactionRepository {
	return &InMemoryTransactionRepository{
		historyLimit: historyLimit,
		lock:         &sync.RWMutex{},
		transactions: map[string]domain.Transaction{},
	}
}

func (r *InMemoryTransactionRepository) AddTransaction(
	_ context.Context, tx *domain.Transaction,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.transactions[tx.Id]; ok {
		return nil
	}
	r.transactions[tx.Id] = *tx
	r.evictOverflow(tx.OwnerAddress)
	return nil
}

func (r *InMemoryTransactionRepository) GetTransaction(
	_ context.Context, id string,
) (*domain.Transaction, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	tx, ok := r.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return &tx, nil
}

func (r *InMemoryTransactionRepository) GetAllTransactionsForOwner(
	_ context.Context, ownerAddress string,
) ([]domain.Transaction, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.ownerTransactions(ownerAddress), nil
}

func (r *InMemoryTransactionRepository) GetPendingTransactionsForOwner(
	_ context.Context, ownerAddress string,
) ([]domain.Transaction, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	pending := make([]domain.Transaction, 0)
	for _, tx := range r.ownerTransactions(ownerAddress) {
		if tx.IsPending() {
			pending = append(pending, tx)
		}
	}
	return pending, nil
}

func (r *InMemoryTransactionRepository) UpdateTransaction(
	_ context.Context, id string,
	updateFn func(tx *domain.Transaction) (*domain.Transaction, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	currentTx, ok := r.transactions[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}

	updatedTx, err := updateFn(&currentTx)
	if err != nil {
		return err
	}

	r.transactions[updatedTx.Id] = *updatedTx
	return nil
}

func (r *InMemoryTransactionRepository) DeleteSettledTransactionsForOwner(
	_ context.Context, ownerAddress string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for id, tx := range r.transactions {
		if tx.IsOwnedBy(ownerAddress) && !tx.IsPending() {
			delete(r.transactions, id)
		}
	}
	return nil
}

func (r *InMemoryTransactionRepository) ownerTransactions(
	ownerAddress string,
) []domain.Transaction {
	txs := make([]domain.Transaction, 0)
	for _, tx := range r.transactions {
		if tx.IsOwnedBy(ownerAddress) {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt > txs[j].CreatedAt
	})
	return txs
}

func (r *InMemoryTransactionRepository) evictOverflow(ownerAddress string) {
	if r.historyLimit <= 0 {
		return
	}

	txs := r.ownerTransactions(ownerAddress)
	if len(txs) <= r.historyLimit {
		return
	}

	settled := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.IsPending() {
			settled = append(settled, tx)
		}
	}
	sort.Slice(settled, func(i, j int) bool {
		return settled[i].CreatedAt < settled[j].CreatedAt
	})

	overflow := len(txs) - r.historyLimit
	for i := 0; i < overflow && i < len(settled); i++ {
		delete(r.transactions, settled[i].Id)
	}
}
