package ports

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
)

// ErrorClass is the taxonomy of provider failures the quote engine branches
// on.
type ErrorClass string

const (
	ErrClassRateLimited           ErrorClass = "RATE_LIMITED"
	ErrClassNoRoute               ErrorClass = "NO_ROUTE"
	ErrClassAmountTooLow          ErrorClass = "AMOUNT_TOO_LOW"
	ErrClassUnsupportedChain      ErrorClass = "UNSUPPORTED_CHAIN"
	ErrClassInsufficientLiquidity ErrorClass = "INSUFFICIENT_LIQUIDITY"
	ErrClassUnknown               ErrorClass = "UNKNOWN"
)

// ProviderError is the typed error returned by every provider adapter.
// Minimum is only populated for the AMOUNT_TOO_LOW class, when the provider
// message embeds the minimum tradable amount.
type ProviderError struct {
	Class   ErrorClass
	Message string
	Minimum string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// AsProviderError unwraps err into a *ProviderError, falling back to the
// UNKNOWN class for any other error.
func AsProviderError(err error) *ProviderError {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr
	}
	return &ProviderError{Class: ErrClassUnknown, Message: err.Error()}
}

// IsRetryable returns whether err belongs to the transient class that the
// quote engine retries with backoff.
func IsRetryable(err error) bool {
	return AsProviderError(err).Class == ErrClassRateLimited
}

var minAmountRegexp = regexp.MustCompile(`(?i)min(?:imum)?[^0-9]*([0-9]+(?:\.[0-9]+)?)`)

// ExtractMinimum pulls the minimum-amount value embedded in a provider error
// message, or returns an empty string when none is found.
func ExtractMinimum(message string) string {
	matches := minAmountRegexp.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

const (
	BridgeStatusPending  BridgeStatus = "PENDING"
	BridgeStatusDone     BridgeStatus = "DONE"
	BridgeStatusFailed   BridgeStatus = "FAILED"
	BridgeStatusNotFound BridgeStatus = "NOT_FOUND"
)

// BridgeStatus is the coarse status a provider reports for a bridge tx.
type BridgeStatus string

// StatusRequest identifies the bridge tx whose status is being queried.
type StatusRequest struct {
	TxHash      string
	SourceChain string
	DestChain   string
}

// StatusResult is the outcome of a provider status check. SourceConfirmed is
// set while the overall status is still PENDING but the source-chain tx has
// been observed as mined.
type StatusResult struct {
	Status          BridgeStatus
	SourceConfirmed bool
	DestTxHash      string
	DestAmount      string
	Message         string
}

// Provider is the typed client of an external quote/status provider. Adapters
// are pure request/response and hold no state besides their endpoint and
// circuit breaker.
type Provider interface {
	Name() string
	GetQuote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error)
	GetStatus(ctx context.Context, req StatusRequest) (*StatusResult, error)
}
