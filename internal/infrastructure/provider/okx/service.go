// Package okx implements the provider client for the OKX DEX cross-chain
// API.
package okx

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

const providerName = "okx"

type okx struct {
	apiURL string
	cb     *gobreaker.CircuitBreaker
}

// NewService returns a new okx client as a ports.Provider interface.
func NewService(apiURL string) (ports.Provider, error) {
	if len(apiURL) <= 0 {
		return nil, fmt.Errorf("missing api url")
	}
	return &okx{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		cb:     circuitbreaker.NewCircuitBreaker(providerName),
	}, nil
}

func (o *okx) Name() string {
	return providerName
}

// The OKX API wraps every response in an envelope and signals errors with a
// non-zero code on HTTP 200.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type quoteData struct {
	ToTokenAmount   string `json:"toTokenAmount"`
	MinimumReceived string `json:"minimumReceived"`
	EstimatedTime   string `json:"estimatedTime"`
	TotalFeeUsd     string `json:"totalFeeUsd"`
}

func (o *okx) GetQuote(
	ctx context.Context, req domain.QuoteRequest,
) (*domain.Quote, error) {
	query := url.Values{}
	query.Set("fromChainId", req.FromChain)
	query.Set("toChainId", req.ToChain)
	query.Set("fromTokenAddress", req.FromAsset)
	query.Set("toTokenAddress", req.ToAsset)
	query.Set("amount", req.FromAmount)
	query.Set("userWalletAddress", req.SenderAddress)
	query.Set("slippage", decimal.NewFromInt(int64(req.SlippageBps)).Shift(-4).String())
	endpoint := fmt.Sprintf("%s/api/v5/dex/cross-chain/quote?%s", o.apiURL, query.Encode())

	data, err := o.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	quotes := []quoteData{}
	if err := json.Unmarshal(data, &quotes); err != nil || len(quotes) <= 0 {
		return nil, &ports.ProviderError{
			Class:   ports.ErrClassNoRoute,
			Message: "no route returned for the requested pair",
		}
	}
	best := quotes[0]

	duration, _ := decimal.NewFromString(best.EstimatedTime)

	return &domain.Quote{
		FromChain:         req.FromChain,
		ToChain:           req.ToChain,
		FromAsset:         req.FromAsset,
		ToAsset:           req.ToAsset,
		FromAmount:        req.FromAmount,
		ToAmount:          best.ToTokenAmount,
		ToAmountMin:       best.MinimumReceived,
		ProviderName:      providerName,
		EstimatedDuration: duration.IntPart(),
		FeeUsd:            best.TotalFeeUsd,
		FetchedAt:         time.Now().Unix(),
		RequestKey:        req.Key(),
	}, nil
}

type statusData struct {
	DetailStatus string `json:"detailStatus"`
	ToTxHash     string `json:"toTxHash"`
	ToAmount     string `json:"toAmount"`
	ErrorMsg     string `json:"errorMsg"`
}

func (o *okx) GetStatus(
	ctx context.Context, req ports.StatusRequest,
) (*ports.StatusResult, error) {
	query := url.Values{}
	query.Set("hash", req.TxHash)
	endpoint := fmt.Sprintf("%s/api/v5/dex/cross-chain/status?%s", o.apiURL, query.Encode())

	data, err := o.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	statuses := []statusData{}
	if err := json.Unmarshal(data, &statuses); err != nil || len(statuses) <= 0 {
		return &ports.StatusResult{Status: ports.BridgeStatusNotFound}, nil
	}
	res := statuses[0]

	switch res.DetailStatus {
	case "SUCCESS":
		return &ports.StatusResult{
			Status:     ports.BridgeStatusDone,
			DestTxHash: res.ToTxHash,
			DestAmount: res.ToAmount,
		}, nil
	case "FAILURE", "REFUND":
		reason := res.ErrorMsg
		if len(reason) <= 0 {
			reason = "bridge reported failure"
		}
		return &ports.StatusResult{
			Status:  ports.BridgeStatusFailed,
			Message: reason,
		}, nil
	case "FROM_SUCCESS":
		return &ports.StatusResult{
			Status:          ports.BridgeStatusPending,
			SourceConfirmed: true,
		}, nil
	default:
		return &ports.StatusResult{Status: ports.BridgeStatusPending}, nil
	}
}

func (o *okx) doGet(ctx context.Context, endpoint string) (json.RawMessage, error) {
	res, err := o.cb.Execute(func() (interface{}, error) {
		status, body, err := httputil.NewHTTPRequest(ctx, "GET", endpoint, "", nil)
		if err != nil {
			return nil, &ports.ProviderError{
				Class: ports.ErrClassUnknown, Message: err.Error(),
			}
		}
		if status == http.StatusTooManyRequests {
			return nil, &ports.ProviderError{
				Class: ports.ErrClassRateLimited, Message: "rate limit exceeded",
			}
		}
		if status != http.StatusOK {
			return nil, &ports.ProviderError{
				Class:   ports.ErrClassUnknown,
				Message: fmt.Sprintf("unexpected status code %d", status),
			}
		}

		env := envelope{}
		if err := json.Unmarshal([]byte(body), &env); err != nil {
			return nil, &ports.ProviderError{
				Class:   ports.ErrClassUnknown,
				Message: fmt.Sprintf("unexpected response: %s", err),
			}
		}
		if env.Code != "0" {
			return nil, parseError(env.Code, env.Msg)
		}
		return env.Data, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(json.RawMessage), nil
}

func parseError(code, msg string) *ports.ProviderError {
	switch code {
	case "50011":
		return &ports.ProviderError{Class: ports.ErrClassRateLimited, Message: msg}
	case "82000":
		return &ports.ProviderError{Class: ports.ErrClassInsufficientLiquidity, Message: msg}
	case "82102":
		return &ports.ProviderError{
			Class:   ports.ErrClassAmountTooLow,
			Message: msg,
			Minimum: ports.ExtractMinimum(msg),
		}
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "minimum") || strings.Contains(lower, "too low"):
		return &ports.ProviderError{
			Class:   ports.ErrClassAmountTooLow,
			Message: msg,
			Minimum: ports.ExtractMinimum(msg),
		}
	case strings.Contains(lower, "chain") && strings.Contains(lower, "not support"):
		return &ports.ProviderError{Class: ports.ErrClassUnsupportedChain, Message: msg}
	case strings.Contains(lower, "route"):
		return &ports.ProviderError{Class: ports.ErrClassNoRoute, Message: msg}
	default:
		return &ports.ProviderError{Class: ports.ErrClassUnknown, Message: msg}
	}
}
