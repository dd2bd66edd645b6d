package poller_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/pkg/poller"
)

type mockStatusProvider struct {
	name string

	mtx     sync.Mutex
	results []*ports.StatusResult
	err     error
	calls   int32
}

func (p *mockStatusProvider) Name() string { return p.name }

func (p *mockStatusProvider) GetQuote(
	_ context.Context, _ domain.QuoteRequest,
) (*domain.Quote, error) {
	return nil, fmt.Errorf("not implemented")
}

func (p *mockStatusProvider) GetStatus(
	_ context.Context, _ ports.StatusRequest,
) (*ports.StatusResult, error) {
	atomic.AddInt32(&p.calls, 1)

	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	res := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return res, nil
}

func (p *mockStatusProvider) callCount() int32 {
	return atomic.LoadInt32(&p.calls)
}

func newTestPoller(
	provider ports.Provider, maxDuration time.Duration,
	errorHandler func(error),
) poller.Service {
	if errorHandler == nil {
		errorHandler = func(error) {}
	}
	return poller.NewService(poller.Opts{
		Providers:         map[string]ports.Provider{provider.Name(): provider},
		Interval:          20 * time.Millisecond,
		MaxDuration:       maxDuration,
		RequestsPerSecond: 1000,
		ErrorHandler:      errorHandler,
	})
}

func newObservable(txID string) *poller.StatusObservable {
	return &poller.StatusObservable{
		TxID:         txID,
		SourceTxHash: "0xsourcehash",
		SourceChain:  "eth",
		DestChain:    "polygon",
		ProviderName: "lifi",
	}
}

func nextEvent(t *testing.T, svc poller.Service) poller.Event {
	select {
	case event := <-svc.GetEventChannel():
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("no event observed within the deadline")
		return nil
	}
}

func TestPollerEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()

	provider := &mockStatusProvider{
		name: "lifi",
		results: []*ports.StatusResult{
			{Status: ports.BridgeStatusNotFound},
			{Status: ports.BridgeStatusPending},
			{Status: ports.BridgeStatusPending, SourceConfirmed: true},
			{
				Status:     ports.BridgeStatusDone,
				DestTxHash: "0xdesthash",
				DestAmount: "995",
			},
		},
	}
	svc := newTestPoller(provider, time.Minute, nil)
	go svc.Start()

	svc.AddObservable(newObservable("tx-1"))
	require.True(t, svc.IsObserving("tx-1"))

	event := nextEvent(t, svc)
	statusEvent, ok := event.(poller.StatusEvent)
	require.True(t, ok)
	require.Equal(t, poller.BridgeSourceConfirmed, statusEvent.EventType)
	require.Equal(t, "tx-1", statusEvent.TxID)

	event = nextEvent(t, svc)
	statusEvent, ok = event.(poller.StatusEvent)
	require.True(t, ok)
	require.Equal(t, poller.BridgeCompleted, statusEvent.EventType)
	require.Equal(t, "0xdesthash", statusEvent.DestTxHash)
	require.Equal(t, "995", statusEvent.DestAmount)

	// a terminal status tears the poll task down on its own
	require.Eventually(t, func() bool {
		return !svc.IsObserving("tx-1")
	}, 3*time.Second, 10*time.Millisecond)

	svc.Stop()
	require.Equal(t, poller.QuitEvent{}, nextEvent(t, svc))
}

func TestPollerEmitsFailure(t *testing.T) {
	t.Parallel()

	provider := &mockStatusProvider{
		name: "lifi",
		results: []*ports.StatusResult{
			{Status: ports.BridgeStatusFailed, Message: "refunded on source"},
		},
	}
	svc := newTestPoller(provider, time.Minute, nil)
	go svc.Start()
	defer svc.Stop()

	svc.AddObservable(newObservable("tx-1"))

	event := nextEvent(t, svc)
	statusEvent, ok := event.(poller.StatusEvent)
	require.True(t, ok)
	require.Equal(t, poller.BridgeFailed, statusEvent.EventType)
	require.Equal(t, "refunded on source", statusEvent.Reason)
}

func TestPollerDuplicateObservableIsNoop(t *testing.T) {
	t.Parallel()

	provider := &mockStatusProvider{
		name:    "lifi",
		results: []*ports.StatusResult{{Status: ports.BridgeStatusPending}},
	}
	svc := newTestPoller(provider, time.Minute, nil)
	go svc.Start()
	defer svc.Stop()

	svc.AddObservable(newObservable("tx-1"))
	svc.AddObservable(newObservable("tx-1"))
	require.True(t, svc.IsObserving("tx-1"))

	svc.RemoveObservable("tx-1")
	require.False(t, svc.IsObserving("tx-1"))
}

func TestPollerUnknownProvider(t *testing.T) {
	t.Parallel()

	provider := &mockStatusProvider{
		name:    "lifi",
		results: []*ports.StatusResult{{Status: ports.BridgeStatusPending}},
	}
	errs := make(chan error, 1)
	svc := newTestPoller(provider, time.Minute, func(err error) {
		errs <- err
	})
	go svc.Start()
	defer svc.Stop()

	obs := newObservable("tx-1")
	obs.ProviderName = "unknown"
	svc.AddObservable(obs)

	require.False(t, svc.IsObserving("tx-1"))
	select {
	case err := <-errs:
		require.ErrorContains(t, err, "unknown")
	case <-time.After(3 * time.Second):
		t.Fatal("no error observed within the deadline")
	}
}

func TestPollerSwallowsTransientErrors(t *testing.T) {
	t.Parallel()

	provider := &mockStatusProvider{
		name: "lifi",
		err:  fmt.Errorf("connection refused"),
	}
	errs := make(chan error, 10)
	svc := newTestPoller(provider, time.Minute, func(err error) {
		errs <- err
	})
	go svc.Start()
	defer svc.Stop()

	svc.AddObservable(newObservable("tx-1"))

	select {
	case err := <-errs:
		require.ErrorContains(t, err, "connection refused")
	case <-time.After(3 * time.Second):
		t.Fatal("no error observed within the deadline")
	}

	// the task survives the failed check and keeps polling
	require.True(t, svc.IsObserving("tx-1"))
	require.Eventually(t, func() bool {
		return provider.callCount() > 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPollerStopRightAfterAdd(t *testing.T) {
	t.Parallel()

	// teardown must be clean even when the poll task had no time to run
	for i := 0; i < 200; i++ {
		provider := &mockStatusProvider{
			name:    "lifi",
			results: []*ports.StatusResult{{Status: ports.BridgeStatusPending}},
		}
		svc := newTestPoller(provider, time.Minute, nil)
		go svc.Start()

		svc.AddObservable(newObservable("tx-1"))
		svc.Stop()
		require.Equal(t, poller.QuitEvent{}, nextEvent(t, svc))
	}
}

func TestPollerRemoveRightAfterAdd(t *testing.T) {
	t.Parallel()

	provider := &mockStatusProvider{
		name:    "lifi",
		results: []*ports.StatusResult{{Status: ports.BridgeStatusPending}},
	}
	svc := newTestPoller(provider, time.Minute, nil)
	go svc.Start()
	defer svc.Stop()

	for i := 0; i < 200; i++ {
		svc.AddObservable(newObservable("tx-1"))
		svc.RemoveObservable("tx-1")
		require.False(t, svc.IsObserving("tx-1"))
	}
}

func TestPollerTimeBound(t *testing.T) {
	t.Parallel()

	provider := &mockStatusProvider{
		name:    "lifi",
		results: []*ports.StatusResult{{Status: ports.BridgeStatusPending}},
	}
	svc := newTestPoller(provider, 50*time.Millisecond, nil)
	go svc.Start()
	defer svc.Stop()

	obs := newObservable("tx-1")
	obs.StartedAt = time.Now().Add(-time.Minute)
	svc.AddObservable(obs)

	event := nextEvent(t, svc)
	statusEvent, ok := event.(poller.StatusEvent)
	require.True(t, ok)
	require.Equal(t, poller.PollTimeout, statusEvent.EventType)
	require.Equal(t, "tx-1", statusEvent.TxID)

	// past the bound the task is dropped without a terminal event
	require.Eventually(t, func() bool {
		return !svc.IsObserving("tx-1")
	}, 3*time.Second, 10*time.Millisecond)
	require.Zero(t, provider.callCount())
}
