package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	log "github.com/sirupsen/logrus"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
)

const (
	New       Status = "NEW"
	Waiting   Status = "WAITING"
	Processed Status = "PROCESSED"
)

type Status string

type observableStatus struct {
	sync.RWMutex
	status Status
}

func newObservableStatus() *observableStatus {
	return &observableStatus{status: New}
}

func (o *observableStatus) Get() Status {
	o.RLock()
	defer o.RUnlock()
	return o.status
}

func (o *observableStatus) Set(status Status) {
	o.Lock()
	defer o.Unlock()
	o.status = status
}

// StatusObservable tracks one bridge transaction until a terminal status or
// the max poll duration. At most one observable per tx id is ever active.
type StatusObservable struct {
	TxID         string
	SourceTxHash string
	SourceChain  string
	DestChain    string
	ProviderName string
	StartedAt    time.Time
}

func (s *StatusObservable) key() string {
	return s.TxID
}

// observe runs one status check and returns whether a terminal status was
// observed.
func (s *StatusObservable) observe(
	provider ports.Provider,
	errChan chan error,
	eventChan chan Event,
	observableStatus *observableStatus,
	rateLimiter *rate.Limiter,
) bool {
	if s == nil {
		return false
	}

	observableStatus.Set(Waiting)
	if err := rateLimiter.Wait(context.Background()); err != nil {
		errChan <- err
		return false
	}

	res, err := provider.GetStatus(context.Background(), ports.StatusRequest{
		TxHash:      s.SourceTxHash,
		SourceChain: s.SourceChain,
		DestChain:   s.DestChain,
	})
	if err != nil {
		errChan <- fmt.Errorf("status check for tx %s: %w", s.TxID, err)
		observableStatus.Set(Processed)
		return false
	}

	observableStatus.Set(Processed)

	switch res.Status {
	case ports.BridgeStatusDone:
		eventChan <- StatusEvent{
			TxID:       s.TxID,
			EventType:  BridgeCompleted,
			DestTxHash: res.DestTxHash,
			DestAmount: res.DestAmount,
		}
		return true
	case ports.BridgeStatusFailed:
		eventChan <- StatusEvent{
			TxID:      s.TxID,
			EventType: BridgeFailed,
			Reason:    res.Message,
		}
		return true
	case ports.BridgeStatusPending:
		if res.SourceConfirmed {
			eventChan <- StatusEvent{
				TxID:      s.TxID,
				EventType: BridgeSourceConfirmed,
			}
		}
	case ports.BridgeStatusNotFound:
		// not indexed yet, keep polling within the duration bound
	}
	return false
}

type observableHandler struct {
	observable       *StatusObservable
	provider         ports.Provider
	wg               *sync.WaitGroup
	ticker           *time.Ticker
	maxDuration      time.Duration
	eventChan        chan Event
	errChan          chan error
	stopChan         chan int
	observableStatus *observableStatus
	rateLimiter      *rate.Limiter
	onExpired        func(txID string)
	expired          bool
}

func newObservableHandler(
	observable *StatusObservable,
	provider ports.Provider,
	wg *sync.WaitGroup,
	interval time.Duration,
	maxDuration time.Duration,
	eventChan chan Event,
	errChan chan error,
	rateLimiter *rate.Limiter,
	onExpired func(txID string),
) *observableHandler {
	return &observableHandler{
		observable:       observable,
		provider:         provider,
		wg:               wg,
		ticker:           time.NewTicker(interval),
		maxDuration:      maxDuration,
		eventChan:        eventChan,
		errChan:          errChan,
		stopChan:         make(chan int, 1),
		observableStatus: newObservableStatus(),
		rateLimiter:      rateLimiter,
		onExpired:        onExpired,
	}
}

// start runs the poll loop. The caller must have incremented the shared
// WaitGroup before spawning it; the counter is released on loop exit.
func (oh *observableHandler) start() {
	log.Debugf("start observing tx: %v", oh.observable.key())
	defer oh.wg.Done()
	for {
		select {
		case <-oh.ticker.C:
			if oh.expired {
				continue
			}
			if time.Since(oh.observable.StartedAt) > oh.maxDuration {
				oh.expired = true
				oh.eventChan <- StatusEvent{
					TxID:      oh.observable.TxID,
					EventType: PollTimeout,
				}
				go oh.onExpired(oh.observable.key())
				continue
			}
			if oh.observableStatus.Get() != Waiting {
				if done := oh.observable.observe(
					oh.provider,
					oh.errChan,
					oh.eventChan,
					oh.observableStatus,
					oh.rateLimiter,
				); done {
					go oh.onExpired(oh.observable.key())
				}
			}
		case <-oh.stopChan:
			oh.ticker.Stop()
			close(oh.stopChan)
			return
		}
	}
}

func (oh *observableHandler) stop() {
	log.Debugf("stop observing tx: %v", oh.observable.key())
	oh.stopChan <- 1
}
