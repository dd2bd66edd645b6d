package dbbadger

import (
	"context"
	"sort"
	"sync"

	"github.com/timshannon/badgerhold/v4"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
)

type transactionRepositoryImpl struct {
	db           *DbManager
	historyLimit int

	mtx     *sync.Mutex
	idLocks map[string]*sync.Mutex
}

// NewTransactionRepositoryImpl returns a badgerhold backed
// domain.TransactionRepository keeping at most historyLimit records per owner.
func NewTransactionRepositoryImpl(
	db *DbManager, historyLimit int,
) domain.TransactionRepository {
	return &transactionRepositoryImpl{
		db:           db,
		historyLimit: historyLimit,
		mtx:          &sync.Mutex{},
		idLocks:      map[string]*sync.Mutex{},
	}
}

func (r *transactionRepositoryImpl) AddTransaction(
	_ context.Context, tx *domain.Transaction,
) error {
	if err := r.db.Store.Insert(tx.Id, tx); err != nil {
		if err != badgerhold.ErrKeyExists {
			return err
		}
		return nil
	}
	return r.evictOverflow(tx.OwnerAddress)
}

func (r *transactionRepositoryImpl) GetTransaction(
	_ context.Context, id string,
) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := r.db.Store.Get(id, &tx); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepositoryImpl) GetAllTransactionsForOwner(
	_ context.Context, ownerAddress string,
) ([]domain.Transaction, error) {
	query := badgerhold.Where("OwnerAddress").Eq(domain.NormalizeAddress(ownerAddress))
	txs, err := r.findTransactions(query)
	if err != nil {
		return nil, err
	}

	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt > txs[j].CreatedAt
	})
	return txs, nil
}

func (r *transactionRepositoryImpl) GetPendingTransactionsForOwner(
	ctx context.Context, ownerAddress string,
) ([]domain.Transaction, error) {
	txs, err := r.GetAllTransactionsForOwner(ctx, ownerAddress)
	if err != nil {
		return nil, err
	}

	pending := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsPending() {
			pending = append(pending, tx)
		}
	}
	return pending, nil
}

func (r *transactionRepositoryImpl) UpdateTransaction(
	ctx context.Context, id string,
	updateFn func(tx *domain.Transaction) (*domain.Transaction, error),
) error {
	lock := r.lockForId(id)
	lock.Lock()
	defer lock.Unlock()

	currentTx, err := r.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	updatedTx, err := updateFn(currentTx)
	if err != nil {
		return err
	}

	return r.db.Store.Update(updatedTx.Id, updatedTx)
}

func (r *transactionRepositoryImpl) DeleteSettledTransactionsForOwner(
	_ context.Context, ownerAddress string,
) error {
	owner := domain.NormalizeAddress(ownerAddress)
	query := badgerhold.Where("OwnerAddress").Eq(owner).
		And("Status.Code").Eq(domain.TxStatusCodeCompleted).
		Or(badgerhold.Where("OwnerAddress").Eq(owner).
			And("Status.Failed").Eq(true))
	return r.db.Store.DeleteMatching(&domain.Transaction{}, query)
}

func (r *transactionRepositoryImpl) findTransactions(
	query *badgerhold.Query,
) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := r.db.Store.Find(&txs, query); err != nil {
		return nil, err
	}
	return txs, nil
}

// evictOverflow trims the owner's history down to the cap, dropping oldest
// non-pending records first. Pending records are never evicted.
func (r *transactionRepositoryImpl) evictOverflow(ownerAddress string) error {
	if r.historyLimit <= 0 {
		return nil
	}

	query := badgerhold.Where("OwnerAddress").Eq(ownerAddress)
	txs, err := r.findTransactions(query)
	if err != nil {
		return err
	}
	if len(txs) <= r.historyLimit {
		return nil
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
		if err := r.db.Store.Delete(settled[i].Id, &domain.Transaction{}); err != nil {
			return err
		}
	}
	return nil
}

func (r *transactionRepositoryImpl) lockForId(id string) *sync.Mutex {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	lock, ok := r.idLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.idLocks[id] = lock
	}
	return lock
}
