// Package jupiter implements the provider client for the Jupiter DEX
// aggregator on Solana. It only serves same-chain swaps; status tracking is
// not exposed by the aggregator because swaps settle atomically.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/pkg/circuitbreaker"
	"github.com/xlamaexchange/bridge-daemon/pkg/httputil"
)

const (
	providerName = "jupiter"
	solanaChain  = "solana"
)

type jupiter struct {
	apiURL string
	cb     *gobreaker.CircuitBreaker
}

// NewService returns a new jupiter client as a ports.Provider interface.
func NewService(apiURL string) (ports.Provider, error) {
	if len(apiURL) <= 0 {
		return nil, fmt.Errorf("missing api url")
	}
	return &jupiter{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		cb:     circuitbreaker.NewCircuitBreaker(providerName),
	}, nil
}

func (j *jupiter) Name() string {
	return providerName
}

type quoteResponse struct {
	OutAmount            string  `json:"outAmount"`
	OtherAmountThreshold string  `json:"otherAmountThreshold"`
	TimeTaken            float64 `json:"timeTaken"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

func (j *jupiter) GetQuote(
	ctx context.Context, req domain.QuoteRequest,
) (*domain.Quote, error) {
	if req.FromChain != solanaChain || req.ToChain != solanaChain {
		return nil, &ports.ProviderError{
			Class:   ports.ErrClassUnsupportedChain,
			Message: fmt.Sprintf("only %s swaps are supported", solanaChain),
		}
	}

	query := url.Values{}
	query.Set("inputMint", req.FromAsset)
	query.Set("outputMint", req.ToAsset)
	query.Set("amount", req.FromAmount)
	query.Set("slippageBps", fmt.Sprintf("%d", req.SlippageBps))
	endpoint := fmt.Sprintf("%s/v6/quote?%s", j.apiURL, query.Encode())

	res, err := j.cb.Execute(func() (interface{}, error) {
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
		return nil, err
	}

	parsed := quoteResponse{}
	if err := json.Unmarshal([]byte(res.(string)), &parsed); err != nil {
		return nil, &ports.ProviderError{
			Class:   ports.ErrClassUnknown,
			Message: fmt.Sprintf("unexpected quote response: %s", err),
		}
	}

	return &domain.Quote{
		FromChain:         req.FromChain,
		ToChain:           req.ToChain,
		FromAsset:         req.FromAsset,
		ToAsset:           req.ToAsset,
		FromAmount:        req.FromAmount,
		ToAmount:          parsed.OutAmount,
		ToAmountMin:       parsed.OtherAmountThreshold,
		ProviderName:      providerName,
		EstimatedDuration: int64(parsed.TimeTaken) + 1,
		FeeUsd:            "0",
		FetchedAt:         time.Now().Unix(),
		RequestKey:        req.Key(),
	}, nil
}

// GetStatus always reports NOT_FOUND: a Jupiter swap is a single atomic
// transaction, there is no bridge leg to track.
func (j *jupiter) GetStatus(
	_ context.Context, _ ports.StatusRequest,
) (*ports.StatusResult, error) {
	return &ports.StatusResult{
		Status:  ports.BridgeStatusNotFound,
		Message: "status tracking not supported",
	}, nil
}

func parseError(status int, body string) *ports.ProviderError {
	message := body
	parsed := errorResponse{}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && len(parsed.Error) > 0 {
		message = parsed.Error
	}

	if status == http.StatusTooManyRequests {
		return &ports.ProviderError{Class: ports.ErrClassRateLimited, Message: message}
	}

	switch parsed.ErrorCode {
	case "COULD_NOT_FIND_ANY_ROUTE":
		return &ports.ProviderError{Class: ports.ErrClassNoRoute, Message: message}
	case "TOKEN_NOT_TRADABLE":
		return &ports.ProviderError{
			Class: ports.ErrClassInsufficientLiquidity, Message: message,
		}
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "minimum") || strings.Contains(lower, "too low") {
		return &ports.ProviderError{
			Class:   ports.ErrClassAmountTooLow,
			Message: message,
			Minimum: ports.ExtractMinimum(message),
		}
	}
	return &ports.ProviderError{Class: ports.ErrClassUnknown, Message: message}
}
