package application

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/pkg/coordinator"
)

const (
	QuoteStatusIdle       QuoteStatus = "idle"
	QuoteStatusDebouncing QuoteStatus = "debouncing"
	QuoteStatusFetching   QuoteStatus = "fetching"
	QuoteStatusRetrying   QuoteStatus = "retrying"
	QuoteStatusSettled    QuoteStatus = "settled"
	QuoteStatusFailed     QuoteStatus = "failed"
)

// QuoteStatus is the caller-visible status of a quote session.
type QuoteStatus string

// QuoteState is the snapshot a quote session exposes to its listener. Err and
// MinimumAmount are only populated for the failed status, Attempt for the
// retrying one.
type QuoteState struct {
	Status        QuoteStatus
	Quote         *domain.Quote
	Err           error
	MinimumAmount string
	Attempt       int
	MaxAttempts   int
}

// QuoteServiceOpts defines the parameters needed for creating a quote
// service with the NewQuoteService method.
type QuoteServiceOpts struct {
	Providers   []ports.Provider
	Coordinator *coordinator.Coordinator
	// DebounceTime is how long an input set must stay unchanged before a
	// fetch starts.
	DebounceTime time.Duration
	// QuoteTTL is the lifetime of a cached quote in the coordinator.
	QuoteTTL time.Duration
	// MaxRetries bounds the automatic retries on rate-limit errors.
	MaxRetries int
	// BackoffBase and BackoffCap shape the exponential retry delay
	// min(base * 2^attempt, cap).
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// QuoteService turns changing trade parameters into debounced, deduplicated,
// retried and cancellable quote fetches across all registered providers.
type QuoteService struct {
	providers    []ports.Provider
	coordinator  *coordinator.Coordinator
	debounceTime time.Duration
	quoteTTL     time.Duration
	maxRetries   int
	backoffBase  time.Duration
	backoffCap   time.Duration
}

// NewQuoteService returns a quote service with sane defaults for any unset
// option.
func NewQuoteService(opts QuoteServiceOpts) *QuoteService {
	debounceTime := opts.DebounceTime
	if debounceTime <= 0 {
		debounceTime = 600 * time.Millisecond
	}
	quoteTTL := opts.QuoteTTL
	if quoteTTL <= 0 {
		quoteTTL = 10 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	backoffCap := opts.BackoffCap
	if backoffCap <= 0 {
		backoffCap = 30 * time.Second
	}

	return &QuoteService{
		providers:    opts.Providers,
		coordinator:  opts.Coordinator,
		debounceTime: debounceTime,
		quoteTTL:     quoteTTL,
		maxRetries:   maxRetries,
		backoffBase:  backoffBase,
		backoffCap:   backoffCap,
	}
}

// NewSession returns a quote session notifying every state change to the
// given listener. One session is expected per UI instance.
func (s *QuoteService) NewSession(listener func(QuoteState)) *QuoteSession {
	if listener == nil {
		listener = func(QuoteState) {}
	}
	return &QuoteSession{
		svc:      s,
		listener: listener,
		state:    QuoteState{Status: QuoteStatusIdle},
	}
}

// QuoteSession is the per-caller controller of the quote engine. Every call
// to Update supersedes the previous input set: pending debounce timers are
// discarded and in-flight fetches are cancelled, their late results dropped
// on arrival.
type QuoteSession struct {
	svc      *QuoteService
	listener func(QuoteState)

	mtx         sync.Mutex
	generation  uint64
	state       QuoteState
	debounce    *time.Timer
	cancelFetch context.CancelFunc
	closed      bool
}

// Update feeds a new set of trade parameters into the session. Invalid input
// resets the session to idle without touching the network; valid input starts
// a new debounce cycle.
func (s *QuoteSession) Update(req domain.QuoteRequest) {
	s.mtx.Lock()
	if s.closed {
		s.mtx.Unlock()
		return
	}

	s.generation++
	gen := s.generation
	s.discardInFlight()

	if err := req.Validate(); err != nil {
		s.state = QuoteState{Status: QuoteStatusIdle}
		s.mtx.Unlock()
		s.notify()
		return
	}

	s.state = QuoteState{Status: QuoteStatusDebouncing}
	s.debounce = time.AfterFunc(s.svc.debounceTime, func() {
		s.fetch(gen, req)
	})
	s.mtx.Unlock()
	s.notify()
}

// State returns the current session snapshot.
func (s *QuoteSession) State() QuoteState {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// Close tears the session down, cancelling any pending timer and in-flight
// fetch. A closed session ignores any further Update.
func (s *QuoteSession) Close() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.generation++
	s.discardInFlight()
	s.closed = true
	s.state = QuoteState{Status: QuoteStatusIdle}
}

func (s *QuoteSession) discardInFlight() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
}

func (s *QuoteSession) fetch(gen uint64, req domain.QuoteRequest) {
	s.mtx.Lock()
	if s.closed || gen != s.generation {
		s.mtx.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFetch = cancel
	s.state = QuoteState{Status: QuoteStatusFetching}
	s.mtx.Unlock()
	s.notify()

	for attempt := 0; attempt <= s.svc.maxRetries; attempt++ {
		if err := s.svc.coordinator.WaitForSlot(ctx); err != nil {
			return
		}

		res, err := s.svc.coordinator.Dedupe(
			ctx, req.Key(), s.svc.quoteTTL,
			func(ctx context.Context) (interface{}, error) {
				return s.svc.bestQuote(ctx, req)
			},
		)
		if err == nil {
			s.apply(gen, QuoteState{
				Status: QuoteStatusSettled,
				Quote:  res.(*domain.Quote),
			})
			return
		}
		if ctx.Err() != nil {
			log.Debugf("dropping stale quote result for key %s", req.Key())
			return
		}

		pErr := ports.AsProviderError(err)
		if pErr.Class == ports.ErrClassRateLimited && attempt < s.svc.maxRetries {
			if !s.apply(gen, QuoteState{
				Status:      QuoteStatusRetrying,
				Err:         err,
				Attempt:     attempt + 1,
				MaxAttempts: s.svc.maxRetries,
			}) {
				return
			}

			delay := s.svc.backoffBase << uint(attempt)
			if delay > s.svc.backoffCap {
				delay = s.svc.backoffCap
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}

		s.apply(gen, QuoteState{
			Status:        QuoteStatusFailed,
			Err:           err,
			MinimumAmount: pErr.Minimum,
		})
		return
	}
}

// apply installs a new state only if the session still belongs to the given
// generation, dropping results of superseded fetches.
func (s *QuoteSession) apply(gen uint64, state QuoteState) bool {
	s.mtx.Lock()
	if s.closed || gen != s.generation {
		s.mtx.Unlock()
		return false
	}
	s.state = state
	s.mtx.Unlock()
	s.notify()
	return true
}

func (s *QuoteSession) notify() {
	s.mtx.Lock()
	state := s.state
	s.mtx.Unlock()
	s.listener(state)
}

// bestQuote queries every provider concurrently and settles on the highest
// destination amount. Individual provider failures are tolerated as long as
// at least one quote settles.
func (s *QuoteService) bestQuote(
	ctx context.Context, req domain.QuoteRequest,
) (*domain.Quote, error) {
	type outcome struct {
		quote *domain.Quote
		err   error
	}
	outcomes := make([]outcome, len(s.providers))

	eg := &errgroup.Group{}
	for i, provider := range s.providers {
		i, provider := i, provider
		eg.Go(func() error {
			s.coordinator.RecordRequest(provider.Name())
			quote, err := provider.GetQuote(ctx, req)
			if err != nil {
				log.WithError(err).Debugf(
					"quote fetch failed for provider %s", provider.Name(),
				)
			}
			outcomes[i] = outcome{quote: quote, err: err}
			return nil
		})
	}
	// goroutines never return an error, Wait is used as a barrier
	eg.Wait()

	var best *domain.Quote
	var bestAmount decimal.Decimal
	errs := make([]error, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		if o.quote == nil {
			continue
		}
		amount, err := decimal.NewFromString(o.quote.ToAmount)
		if err != nil {
			continue
		}
		if best == nil || amount.GreaterThan(bestAmount) {
			best = o.quote
			bestAmount = amount
		}
	}
	if best != nil {
		return best, nil
	}

	return nil, pickError(errs)
}

// pickError selects the most actionable failure among the provider errors:
// a minimum-amount violation beats a transient rate limit, which beats any
// other class.
func pickError(errs []error) error {
	var rateLimited, firstErr error
	for _, err := range errs {
		pErr := ports.AsProviderError(err)
		switch pErr.Class {
		case ports.ErrClassAmountTooLow:
			return err
		case ports.ErrClassRateLimited:
			if rateLimited == nil {
				rateLimited = err
			}
		default:
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if rateLimited != nil {
		return rateLimited
	}
	if firstErr != nil {
		return firstErr
	}
	return &ports.ProviderError{
		Class:   ports.ErrClassUnknown,
		Message: "no provider returned a quote",
	}
}
