// Package wallet implements the client towards the external signer service.
// The daemon holds no keys: approval and source transactions are built and
// signed by the wallet host, which exposes a small HTTP interface.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/pkg/httputil"
)

type service struct {
	addr string
}

// NewService returns a client for the signer listening on addr as a
// ports.Wallet interface.
func NewService(addr string) (ports.Wallet, error) {
	if len(addr) <= 0 {
		return nil, fmt.Errorf("missing wallet address")
	}
	return &service{addr: strings.TrimSuffix(addr, "/")}, nil
}

type allowanceRequest struct {
	Chain  string `json:"chain"`
	Asset  string `json:"asset"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type allowanceResponse struct {
	Sufficient bool `json:"sufficient"`
}

func (s *service) HasSufficientAllowance(
	ctx context.Context, chain, asset, ownerAddress, amount string,
) (bool, error) {
	body, err := json.Marshal(allowanceRequest{
		Chain: chain, Asset: asset, Owner: ownerAddress, Amount: amount,
	})
	if err != nil {
		return false, err
	}

	res, err := s.doPost(ctx, "/v1/allowance/check", string(body))
	if err != nil {
		return false, err
	}

	parsed := allowanceResponse{}
	if err := json.Unmarshal([]byte(res), &parsed); err != nil {
		return false, fmt.Errorf("unexpected allowance response: %w", err)
	}
	return parsed.Sufficient, nil
}

type txResponse struct {
	TxHash string `json:"txHash"`
}

func (s *service) SendApproval(
	ctx context.Context, chain, asset, ownerAddress, amount string,
) (string, error) {
	body, err := json.Marshal(allowanceRequest{
		Chain: chain, Asset: asset, Owner: ownerAddress, Amount: amount,
	})
	if err != nil {
		return "", err
	}

	res, err := s.doPost(ctx, "/v1/approvals", string(body))
	if err != nil {
		return "", err
	}

	parsed := txResponse{}
	if err := json.Unmarshal([]byte(res), &parsed); err != nil {
		return "", fmt.Errorf("unexpected approval response: %w", err)
	}
	return parsed.TxHash, nil
}

type bridgeTxRequest struct {
	SourceChain string `json:"sourceChain"`
	DestChain   string `json:"destChain"`
	SourceAsset string `json:"sourceAsset"`
	DestAsset   string `json:"destAsset"`
	FromAmount  string `json:"fromAmount"`
	Owner       string `json:"owner"`
	Provider    string `json:"provider"`
}

func (s *service) SendBridgeTx(
	ctx context.Context, tx *domain.Transaction,
) (string, error) {
	body, err := json.Marshal(bridgeTxRequest{
		SourceChain: tx.SourceChain,
		DestChain:   tx.DestChain,
		SourceAsset: tx.SourceAsset,
		DestAsset:   tx.DestAsset,
		FromAmount:  tx.FromAmount,
		Owner:       tx.OwnerAddress,
		Provider:    tx.ProviderName,
	})
	if err != nil {
		return "", err
	}

	res, err := s.doPost(ctx, "/v1/transactions", string(body))
	if err != nil {
		return "", err
	}

	parsed := txResponse{}
	if err := json.Unmarshal([]byte(res), &parsed); err != nil {
		return "", fmt.Errorf("unexpected transaction response: %w", err)
	}
	if len(parsed.TxHash) <= 0 {
		return "", fmt.Errorf("wallet returned an empty tx hash")
	}
	return parsed.TxHash, nil
}

func (s *service) doPost(ctx context.Context, path, body string) (string, error) {
	status, res, err := httputil.NewHTTPRequest(
		ctx, "POST", s.addr+path, body, nil,
	)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		message := res
		parsed := struct {
			Message string `json:"message"`
		}{}
		if err := json.Unmarshal([]byte(res), &parsed); err == nil && len(parsed.Message) > 0 {
			message = parsed.Message
		}
		return "", fmt.Errorf("wallet error (status %d): %s", status, message)
	}
	return res, nil
}
