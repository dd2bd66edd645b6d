// Package poller drives pending bridge transactions toward a terminal status
// by periodically querying the provider status endpoints, one bounded task
// per transaction id.
package poller

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
)

const (
	eventQueueMaxSize = 100
	errorQueueMaxSize = 10
)

// Service manages the set of active poll tasks. Use Start and Stop methods
// to manage it.
type Service interface {
	Start()
	Stop()
	GetEventChannel() chan Event
	AddObservable(observable *StatusObservable)
	RemoveObservable(txID string)
	IsObserving(txID string) bool
}

type statusPoller struct {
	interval     time.Duration
	maxDuration  time.Duration
	providers    map[string]ports.Provider
	errChan      chan error
	eventChan    chan Event
	observables  map[string]*observableHandler
	errorHandler func(err error)
	rateLimiter  *rate.Limiter
	mutex        *sync.RWMutex
	wg           *sync.WaitGroup
}

// Opts defines the parameters needed for creating a poller service with the
// NewService method.
type Opts struct {
	// Providers maps provider names to their status clients.
	Providers map[string]ports.Provider
	// Interval between two status checks of the same transaction.
	Interval time.Duration
	// MaxDuration bounds the lifetime of every poll task. Past the bound the
	// task stops without forcing a state change.
	MaxDuration time.Duration
	// RequestsPerSecond caps the overall status-check rate across tasks.
	RequestsPerSecond int
	ErrorHandler      func(err error)
}

// NewService returns a poller that is ready to watch for bridge transaction
// statuses.
func NewService(opts Opts) Service {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &statusPoller{
		interval:     opts.Interval,
		maxDuration:  opts.MaxDuration,
		providers:    opts.Providers,
		errChan:      make(chan error, errorQueueMaxSize),
		eventChan:    make(chan Event, eventQueueMaxSize),
		observables:  map[string]*observableHandler{},
		errorHandler: opts.ErrorHandler,
		rateLimiter:  rate.NewLimiter(rate.Limit(rps), rps),
		mutex:        &sync.RWMutex{},
		wg:           &sync.WaitGroup{},
	}
}

// Start blocks dispatching polling errors to the error handler until Stop is
// called. Transient errors never stop a task.
func (p *statusPoller) Start() {
	for err := range p.errChan {
		go p.errorHandler(err)
	}
}

// Stop stops every active poll task, publishes a quit event and shuts the
// service down. No timer survives a teardown.
func (p *statusPoller) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, obsHandler := range p.observables {
		go obsHandler.stop()
	}
	p.observables = map[string]*observableHandler{}
	p.wg.Wait()
	p.eventChan <- QuitEvent{}
	close(p.errChan)
}

// GetEventChannel returns the channel over which status transitions are
// published.
func (p *statusPoller) GetEventChannel() chan Event {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.eventChan
}

// AddObservable starts a poll task for the given transaction, unless one is
// already tracking the same tx id.
func (p *statusPoller) AddObservable(observable *StatusObservable) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.observables[observable.key()]; ok {
		return
	}

	provider, ok := p.providers[observable.ProviderName]
	if !ok {
		p.errChan <- fmt.Errorf(
			"no status provider named %s for tx %s",
			observable.ProviderName, observable.TxID,
		)
		return
	}

	if observable.StartedAt.IsZero() {
		observable.StartedAt = time.Now()
	}

	obsHandler := newObservableHandler(
		observable,
		provider,
		p.wg,
		p.interval,
		p.maxDuration,
		p.eventChan,
		p.errChan,
		p.rateLimiter,
		p.RemoveObservable,
	)

	p.observables[observable.key()] = obsHandler
	// counter incremented before the goroutine spawns, released on loop exit
	p.wg.Add(1)
	go obsHandler.start()
}

// RemoveObservable stops watching the given transaction.
func (p *statusPoller) RemoveObservable(txID string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if obsHandler, ok := p.observables[txID]; ok {
		obsHandler.stop()
		delete(p.observables, txID)
	}
}

// IsObserving returns whether a poll task is active for the given tx id.
func (p *statusPoller) IsObserving(txID string) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	_, ok := p.observables[txID]
	return ok
}
