package inmemory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/infrastructure/storage/db/inmemory"
)

const ownerAddress = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func newPendingSourceTransaction(
	t *testing.T, owner string, createdAt int64,
) *domain.Transaction {
	tx := domain.NewTransaction(owner)
	tx.CreatedAt = createdAt

	ok, err := tx.Submit(domain.Quote{
		FromChain:    "eth",
		ToChain:      "polygon",
		FromAsset:    "0xusdc",
		ToAsset:      "0xusdt",
		FromAmount:   "1000",
		ToAmount:     "998",
		ProviderName: "lifi",
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tx.SendSource("0xsourcehash")
	require.NoError(t, err)
	require.True(t, ok)
	return tx
}

func newCompletedTransaction(
	t *testing.T, owner string, createdAt int64,
) *domain.Transaction {
	tx := newPendingSourceTransaction(t, owner, createdAt)
	ok, err := tx.ConfirmSource()
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tx.Complete("0xdesthash", "995")
	require.NoError(t, err)
	require.True(t, ok)
	return tx
}

func TestAddAndGetTransaction(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewTransactionRepositoryImpl(100)
	ctx := context.Background()

	tx := newPendingSourceTransaction(t, ownerAddress, 1000)
	require.NoError(t, repo.AddTransaction(ctx, tx))
	require.NoError(t, repo.AddTransaction(ctx, tx))

	found, err := repo.GetTransaction(ctx, tx.Id)
	require.NoError(t, err)
	require.Equal(t, tx.Id, found.Id)

	// the repository hands out copies, mutating them must not leak
	found.Status.Failed = true
	again, err := repo.GetTransaction(ctx, tx.Id)
	require.NoError(t, err)
	require.False(t, again.Status.Failed)

	_, err = repo.GetTransaction(ctx, "unknown-id")
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestOwnerScopedQueries(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewTransactionRepositoryImpl(100)
	ctx := context.Background()

	pending := newPendingSourceTransaction(t, ownerAddress, 1001)
	settled := newCompletedTransaction(t, ownerAddress, 1000)
	other := newPendingSourceTransaction(
		t, "0x0000000000000000000000000000000000000001", 1002,
	)
	for _, tx := range []*domain.Transaction{pending, settled, other} {
		require.NoError(t, repo.AddTransaction(ctx, tx))
	}

	txs, err := repo.GetAllTransactionsForOwner(
		ctx, "0xAB5801A7D398351B8BE11C439E05C5B3259AEC9B",
	)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, pending.Id, txs[0].Id)
	require.Equal(t, settled.Id, txs[1].Id)

	onlyPending, err := repo.GetPendingTransactionsForOwner(ctx, ownerAddress)
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	require.Equal(t, pending.Id, onlyPending[0].Id)
}

func TestUpdateTransaction(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewTransactionRepositoryImpl(100)
	ctx := context.Background()

	tx := newPendingSourceTransaction(t, ownerAddress, 1000)
	require.NoError(t, repo.AddTransaction(ctx, tx))

	require.NoError(t, repo.UpdateTransaction(
		ctx, tx.Id,
		func(tx *domain.Transaction) (*domain.Transaction, error) {
			if _, err := tx.ConfirmSource(); err != nil {
				return nil, err
			}
			return tx, nil
		},
	))

	found, err := repo.GetTransaction(ctx, tx.Id)
	require.NoError(t, err)
	require.Equal(t, "bridging", found.Status.String())

	require.ErrorIs(t, repo.UpdateTransaction(
		ctx, "unknown-id",
		func(tx *domain.Transaction) (*domain.Transaction, error) {
			return tx, nil
		},
	), domain.ErrTransactionNotFound)
}

func TestDeleteSettledTransactionsForOwner(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewTransactionRepositoryImpl(100)
	ctx := context.Background()

	pending := newPendingSourceTransaction(t, ownerAddress, 1000)
	settled := newCompletedTransaction(t, ownerAddress, 1001)
	require.NoError(t, repo.AddTransaction(ctx, pending))
	require.NoError(t, repo.AddTransaction(ctx, settled))

	require.NoError(t, repo.DeleteSettledTransactionsForOwner(ctx, ownerAddress))

	txs, err := repo.GetAllTransactionsForOwner(ctx, ownerAddress)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, pending.Id, txs[0].Id)
}

func TestHistoryLimit(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewTransactionRepositoryImpl(2)
	ctx := context.Background()

	oldest := newCompletedTransaction(t, ownerAddress, 1000)
	newer := newCompletedTransaction(t, ownerAddress, 1001)
	pending := newPendingSourceTransaction(t, ownerAddress, 1002)
	require.NoError(t, repo.AddTransaction(ctx, oldest))
	require.NoError(t, repo.AddTransaction(ctx, newer))
	require.NoError(t, repo.AddTransaction(ctx, pending))

	txs, err := repo.GetAllTransactionsForOwner(ctx, ownerAddress)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		require.NotEqual(t, oldest.Id, tx.Id)
	}
}
