package lifi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/internal/infrastructure/provider/lifi"
)

func newQuoteRequest() domain.QuoteRequest {
	return domain.QuoteRequest{
		FromChain:     "1",
		ToChain:       "137",
		FromAsset:     "0xusdc",
		ToAsset:       "0xusdt",
		FromAmount:    "1000000",
		SenderAddress: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		SlippageBps:   50,
	}
}

func TestGetQuote(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/quote", r.URL.Path)
			query := r.URL.Query()
			require.Equal(t, "1", query.Get("fromChain"))
			require.Equal(t, "137", query.Get("toChain"))
			require.Equal(t, "0xusdc", query.Get("fromToken"))
			require.Equal(t, "1000000", query.Get("fromAmount"))
			// 50 bps expressed as a fraction
			require.Equal(t, "0.005", query.Get("slippage"))

			w.Write([]byte(`{
				"tool": "stargate",
				"estimate": {
					"toAmount": "998000",
					"toAmountMin": "993010",
					"executionDuration": 120,
					"feeCosts": [
						{"amountUSD": "0.30"},
						{"amountUSD": "0.12"}
					]
				}
			}`))
		},
	))
	defer server.Close()

	svc, err := lifi.NewService(server.URL)
	require.NoError(t, err)
	require.Equal(t, "lifi", svc.Name())

	quote, err := svc.GetQuote(context.Background(), newQuoteRequest())
	require.NoError(t, err)
	require.Equal(t, "998000", quote.ToAmount)
	require.Equal(t, "993010", quote.ToAmountMin)
	require.Equal(t, int64(120), quote.EstimatedDuration)
	require.Equal(t, "0.42", quote.FeeUsd)
	require.Equal(t, "lifi", quote.ProviderName)
	require.Equal(t, newQuoteRequest().Key(), quote.RequestKey)
}

func TestGetQuoteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		status          int
		body            string
		expectedClass   ports.ErrorClass
		expectedMinimum string
	}{
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `{"message": "Too many requests"}`,
			expectedClass: ports.ErrClassRateLimited,
		},
		{
			name:            "amount too low",
			status:          http.StatusBadRequest,
			body:            `{"message": "The amount is too low, minimum is 0.05"}`,
			expectedClass:   ports.ErrClassAmountTooLow,
			expectedMinimum: "0.05",
		},
		{
			name:          "no route",
			status:        http.StatusNotFound,
			body:          `{"message": "No available quotes for the requested transfer"}`,
			expectedClass: ports.ErrClassNoRoute,
		},
		{
			name:          "unsupported chain",
			status:        http.StatusBadRequest,
			body:          `{"message": "Chain 999 is not supported"}`,
			expectedClass: ports.ErrClassUnsupportedChain,
		},
		{
			name:          "insufficient liquidity",
			status:        http.StatusBadRequest,
			body:          `{"message": "Not enough liquidity for this route"}`,
			expectedClass: ports.ErrClassInsufficientLiquidity,
		},
		{
			name:          "unknown",
			status:        http.StatusInternalServerError,
			body:          `boom`,
			expectedClass: ports.ErrClassUnknown,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				},
			))
			defer server.Close()

			svc, err := lifi.NewService(server.URL)
			require.NoError(t, err)

			_, err = svc.GetQuote(context.Background(), newQuoteRequest())
			require.Error(t, err)

			pErr := ports.AsProviderError(err)
			require.Equal(t, tt.expectedClass, pErr.Class)
			require.Equal(t, tt.expectedMinimum, pErr.Minimum)
		})
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected *ports.StatusResult
	}{
		{
			name: "done",
			body: `{
				"status": "DONE",
				"receiving": {"txHash": "0xdesthash", "amount": "995000"}
			}`,
			expected: &ports.StatusResult{
				Status:     ports.BridgeStatusDone,
				DestTxHash: "0xdesthash",
				DestAmount: "995000",
			},
		},
		{
			name: "failed",
			body: `{"status": "FAILED", "substatusMessage": "refunded on source"}`,
			expected: &ports.StatusResult{
				Status:  ports.BridgeStatusFailed,
				Message: "refunded on source",
			},
		},
		{
			name:     "not indexed yet",
			body:     `{"status": "NOT_FOUND"}`,
			expected: &ports.StatusResult{Status: ports.BridgeStatusNotFound},
		},
		{
			name:     "pending before source confirmation",
			body:     `{"status": "PENDING", "substatus": "WAIT_SOURCE_CONFIRMATIONS"}`,
			expected: &ports.StatusResult{Status: ports.BridgeStatusPending},
		},
		{
			name: "pending with source confirmed",
			body: `{"status": "PENDING", "substatus": "WAIT_DESTINATION_TRANSACTION"}`,
			expected: &ports.StatusResult{
				Status:          ports.BridgeStatusPending,
				SourceConfirmed: true,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					require.Equal(t, "/v1/status", r.URL.Path)
					require.Equal(t, "0xsourcehash", r.URL.Query().Get("txHash"))
					w.Write([]byte(tt.body))
				},
			))
			defer server.Close()

			svc, err := lifi.NewService(server.URL)
			require.NoError(t, err)

			res, err := svc.GetStatus(context.Background(), ports.StatusRequest{
				TxHash:      "0xsourcehash",
				SourceChain: "1",
				DestChain:   "137",
			})
			require.NoError(t, err)
			require.Equal(t, tt.expected, res)
		})
	}
}
