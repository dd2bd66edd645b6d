// Package lifi implements the provider client for the LI.FI bridge
// aggregator API.
package lifi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/pkg/circuitbreaker"
	"github.com/xlamaexchange/bridge-daemon/pkg/httputil"
)

const providerName = "lifi"

type lifi struct {
	apiURL string
	cb     *gobreaker.CircuitBreaker
}

// NewService returns a new lifi client as a ports.Provider interface.
func NewService(apiURL string) (ports.Provider, error) {
	if len(apiURL) <= 0 {
		return nil, fmt.Errorf("missing api url")
	}
	return &lifi{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		cb:     circuitbreaker.NewCircuitBreaker(providerName),
	}, nil
}

func (l *lifi) Name() string {
	return providerName
}

type quoteResponse struct {
	Tool     string `json:"tool"`
	Estimate struct {
		ToAmount          string `json:"toAmount"`
		ToAmountMin       string `json:"toAmountMin"`
		ExecutionDuration int64  `json:"executionDuration"`
		FeeCosts          []struct {
			AmountUSD string `json:"amountUSD"`
		} `json:"feeCosts"`
	} `json:"estimate"`
}

func (l *lifi) GetQuote(
	ctx context.Context, req domain.QuoteRequest,
) (*domain.Quote, error) {
	query := url.Values{}
	query.Set("fromChain", req.FromChain)
	query.Set("toChain", req.ToChain)
	query.Set("fromToken", req.FromAsset)
	query.Set("toToken", req.ToAsset)
	query.Set("fromAmount", req.FromAmount)
	query.Set("fromAddress", req.SenderAddress)
	query.Set("slippage", decimal.NewFromInt(int64(req.SlippageBps)).Shift(-4).String())
	endpoint := fmt.Sprintf("%s/v1/quote?%s", l.apiURL, query.Encode())

	body, err := l.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	res := quoteResponse{}
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return nil, &ports.ProviderError{
			Class:   ports.ErrClassUnknown,
			Message: fmt.Sprintf("unexpected quote response: %s", err),
		}
	}

	feeUsd := decimal.Zero
	for _, fee := range res.Estimate.FeeCosts {
		amount, err := decimal.NewFromString(fee.AmountUSD)
		if err == nil {
			feeUsd = feeUsd.Add(amount)
		}
	}

	return &domain.Quote{
		FromChain:         req.FromChain,
		ToChain:           req.ToChain,
		FromAsset:         req.FromAsset,
		ToAsset:           req.ToAsset,
		FromAmount:        req.FromAmount,
		ToAmount:          res.Estimate.ToAmount,
		ToAmountMin:       res.Estimate.ToAmountMin,
		ProviderName:      providerName,
		EstimatedDuration: res.Estimate.ExecutionDuration,
		FeeUsd:            feeUsd.String(),
		FetchedAt:         time.Now().Unix(),
		RequestKey:        req.Key(),
	}, nil
}

type statusResponse struct {
	Status           string `json:"status"`
	Substatus        string `json:"substatus"`
	SubstatusMessage string `json:"substatusMessage"`
	Receiving        struct {
		TxHash string `json:"txHash"`
		Amount string `json:"amount"`
	} `json:"receiving"`
}

func (l *lifi) GetStatus(
	ctx context.Context, req ports.StatusRequest,
) (*ports.StatusResult, error) {
	query := url.Values{}
	query.Set("txHash", req.TxHash)
	query.Set("fromChain", req.SourceChain)
	query.Set("toChain", req.DestChain)
	endpoint := fmt.Sprintf("%s/v1/status?%s", l.apiURL, query.Encode())

	body, err := l.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	res := statusResponse{}
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return nil, &ports.ProviderError{
			Class:   ports.ErrClassUnknown,
			Message: fmt.Sprintf("unexpected status response: %s", err),
		}
	}

	switch res.Status {
	case "DONE":
		return &ports.StatusResult{
			Status:     ports.BridgeStatusDone,
			DestTxHash: res.Receiving.TxHash,
			DestAmount: res.Receiving.Amount,
		}, nil
	case "FAILED", "INVALID":
		reason := res.SubstatusMessage
		if len(reason) <= 0 {
			reason = "bridge reported failure"
		}
		return &ports.StatusResult{
			Status:  ports.BridgeStatusFailed,
			Message: reason,
		}, nil
	case "NOT_FOUND":
		return &ports.StatusResult{Status: ports.BridgeStatusNotFound}, nil
	default:
		return &ports.StatusResult{
			Status:          ports.BridgeStatusPending,
			SourceConfirmed: res.Substatus == "WAIT_DESTINATION_TRANSACTION",
		}, nil
	}
}

func (l *lifi) doGet(ctx context.Context, endpoint string) (string, error) {
	res, err := l.cb.Execute(func() (interface{}, error) {
		status, body, err := httputil.NewHTTPRequest(ctx, "GET", endpoint, "", nil)
		if err != nil {
			return nil, &ports.ProviderError{
				Class: ports.ErrClassUnknown, Message: err.Error(),
			}
		}
		if status != http.StatusOK {
			return nil, parseError(status, body)
		}
		return body, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func parseError(status int, body string) *ports.ProviderError {
	message := body
	parsed := struct {
		Message string `json:"message"`
	}{}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && len(parsed.Message) > 0 {
		message = parsed.Message
	}

	if status == http.StatusTooManyRequests {
		return &ports.ProviderError{Class: ports.ErrClassRateLimited, Message: message}
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "too low") || strings.Contains(lower, "minimum"):
		return &ports.ProviderError{
			Class:   ports.ErrClassAmountTooLow,
			Message: message,
			Minimum: ports.ExtractMinimum(message),
		}
	case strings.Contains(lower, "no available quotes") ||
		strings.Contains(lower, "no route"):
		return &ports.ProviderError{Class: ports.ErrClassNoRoute, Message: message}
	case strings.Contains(lower, "chain") && strings.Contains(lower, "not supported"):
		return &ports.ProviderError{Class: ports.ErrClassUnsupportedChain, Message: message}
	case strings.Contains(lower, "liquidity"):
		return &ports.ProviderError{Class: ports.ErrClassInsufficientLiquidity, Message: message}
	default:
		return &ports.ProviderError{Class: ports.ErrClassUnknown, Message: message}
	}
}
