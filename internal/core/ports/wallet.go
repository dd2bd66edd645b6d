package ports

import (
	"context"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
)

// Wallet is the boundary towards the external signer. The daemon never
// touches keys: it only asks whether an allowance covers a trade and requests
// the dispatch of approval and source-chain transactions. Both dispatch
// methods return once the tx has been broadcast, with its hash.
type Wallet interface {
	HasSufficientAllowance(
		ctx context.Context, chain, asset, ownerAddress, amount string,
	) (bool, error)
	SendApproval(
		ctx context.Context, chain, asset, ownerAddress, amount string,
	) (string, error)
	SendBridgeTx(ctx context.Context, tx *domain.Transaction) (string, error)
}
