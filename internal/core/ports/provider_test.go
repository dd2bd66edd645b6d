package ports_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
)

func TestAsProviderError(t *testing.T) {
	t.Parallel()

	typed := &ports.ProviderError{
		Class:   ports.ErrClassRateLimited,
		Message: "too many requests",
	}
	require.Equal(t, typed, ports.AsProviderError(typed))
	require.Equal(
		t, typed,
		ports.AsProviderError(fmt.Errorf("quote fetch: %w", typed)),
	)

	plain := ports.AsProviderError(fmt.Errorf("connection refused"))
	require.Equal(t, ports.ErrClassUnknown, plain.Class)
	require.Equal(t, "connection refused", plain.Message)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, ports.IsRetryable(&ports.ProviderError{
		Class: ports.ErrClassRateLimited,
	}))
	require.False(t, ports.IsRetryable(&ports.ProviderError{
		Class: ports.ErrClassNoRoute,
	}))
	require.False(t, ports.IsRetryable(fmt.Errorf("connection refused")))
}

func TestExtractMinimum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message  string
		expected string
	}{
		{"amount below minimum of 0.05", "0.05"},
		{"Minimum amount is 10", "10"},
		{"min: 1000000", "1000000"},
		{"The transfer is smaller than the minimum (2.5 USDC)", "2.5"},
		{"no route found", ""},
		{"", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.message, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.expected, ports.ExtractMinimum(tt.message))
		})
	}
}
