package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// QuoteRequest holds every user-controlled parameter of a quote. Two requests
// with the same parameters always produce the same Key.
type QuoteRequest struct {
	FromChain     string
	ToChain       string
	FromAsset     string
	ToAsset       string
	FromAmount    string
	SenderAddress string
	SlippageBps   uint32
}

// Key returns the deterministic dedup/cache key derived from all request
// parameters.
func (r QuoteRequest) Key() string {
	payload := fmt.Sprintf(
		"%s|%s|%s|%s|%s|%s|%d",
		r.FromChain, r.ToChain, r.FromAsset, r.ToAsset,
		r.FromAmount, NormalizeAddress(r.SenderAddress), r.SlippageBps,
	)
	hash := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(hash[:])
}

// Validate returns an error for any request that must not reach the network
// layer: missing chain, asset or sender, a non-positive amount, or a
// same-asset swap.
func (r QuoteRequest) Validate() error {
	if len(r.FromChain) <= 0 || len(r.ToChain) <= 0 {
		return ErrQuoteMissingChain
	}
	if len(r.FromAsset) <= 0 || len(r.ToAsset) <= 0 {
		return ErrQuoteMissingAsset
	}
	if len(r.SenderAddress) <= 0 {
		return ErrQuoteMissingSender
	}
	amount, err := decimal.NewFromString(r.FromAmount)
	if err != nil || !amount.IsPositive() {
		return ErrQuoteInvalidAmount
	}
	if r.FromChain == r.ToChain && r.FromAsset == r.ToAsset {
		return ErrQuoteSameAsset
	}
	return nil
}

// Quote is the immutable result of a single provider quote call. A changed
// input always yields a new Quote, never a mutation of an existing one.
type Quote struct {
	FromChain         string
	ToChain           string
	FromAsset         string
	ToAsset           string
	FromAmount        string
	ToAmount          string
	ToAmountMin       string
	ProviderName      string
	EstimatedDuration int64
	FeeUsd            string
	FetchedAt         int64
	RequestKey        string
}
