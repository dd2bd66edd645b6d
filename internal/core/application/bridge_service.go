package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
	"github.com/xlamaexchange/bridge-daemon/pkg/poller"
)

// BridgeServiceOpts defines the parameters needed for creating a bridge
// service with the NewBridgeService method.
type BridgeServiceOpts struct {
	Repository domain.TransactionRepository
	Wallet     ports.Wallet
	Poller     poller.Service
}

// BridgeService drives bridge transactions through their lifecycle: it
// creates records on submission, runs the approval flow against the external
// signer, consumes poller events to move pending transactions forward and
// publishes owner-scoped history snapshots to subscribers.
type BridgeService struct {
	repo      domain.TransactionRepository
	wallet    ports.Wallet
	statusSvc poller.Service

	subs *subscriberStore
}

// NewBridgeService returns a bridge service ready to be started.
func NewBridgeService(opts BridgeServiceOpts) (*BridgeService, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("missing transaction repository")
	}
	if opts.Wallet == nil {
		return nil, fmt.Errorf("missing wallet")
	}
	if opts.Poller == nil {
		return nil, fmt.Errorf("missing status poller")
	}

	return &BridgeService{
		repo:      opts.Repository,
		wallet:    opts.Wallet,
		statusSvc: opts.Poller,
		subs:      newSubscriberStore(),
	}, nil
}

// Start spins up the status poller and the event loop feeding its
// transitions back into the store.
func (s *BridgeService) Start() {
	go s.statusSvc.Start()
	go s.listenEvents()
}

// Stop tears the poller down. The event loop exits on the poller's quit
// event, so no timer or goroutine survives.
func (s *BridgeService) Stop() {
	s.statusSvc.Stop()
}

// SubmitBridge creates a transaction record for the accepted quote, owned by
// the given account, and starts the approval flow. It returns the new
// transaction id right away; the lifecycle advances asynchronously.
func (s *BridgeService) SubmitBridge(
	ctx context.Context, ownerAddress string, quote *domain.Quote,
) (string, error) {
	if err := validateOwner(ownerAddress); err != nil {
		return "", err
	}
	if quote == nil {
		return "", fmt.Errorf("missing quote")
	}

	tx := domain.NewTransaction(ownerAddress)
	if _, err := tx.Submit(*quote); err != nil {
		return "", err
	}
	if err := s.repo.AddTransaction(ctx, tx); err != nil {
		return "", err
	}
	s.publish(tx.OwnerAddress)

	log.Debugf(
		"submitted bridge %s from %s to %s via %s",
		tx.Id, tx.SourceChain, tx.DestChain, tx.ProviderName,
	)

	go s.checkApproval(context.Background(), tx.Id)
	return tx.Id, nil
}

// ApproveBridge is the user-action entrypoint confirming the allowance grant
// of a transaction in awaiting-approval status. It dispatches the approval
// to the signer and, once broadcast, the source-chain transaction.
func (s *BridgeService) ApproveBridge(ctx context.Context, id string) error {
	if err := s.updateAndPublish(ctx, id, func(
		tx *domain.Transaction,
	) (*domain.Transaction, error) {
		if _, err := tx.StartApproval(); err != nil {
			return nil, err
		}
		return tx, nil
	}); err != nil {
		return err
	}

	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.wallet.SendApproval(
		ctx, tx.SourceChain, tx.SourceAsset, tx.OwnerAddress, tx.FromAmount,
	); err != nil {
		s.failTransaction(ctx, id, fmt.Sprintf("approval rejected: %s", err))
		return nil
	}

	s.dispatchSource(ctx, id)
	return nil
}

// SubscribeTransactions returns a channel receiving the owner's full
// transaction history, newest first, starting with the current snapshot and
// again after every mutation. The returned function cancels the
// subscription.
func (s *BridgeService) SubscribeTransactions(
	ownerAddress string,
) (<-chan []domain.Transaction, func(), error) {
	if err := validateOwner(ownerAddress); err != nil {
		return nil, nil, err
	}

	owner := domain.NormalizeAddress(ownerAddress)
	ch, unsubscribe := s.subs.add(owner)

	if snapshot, err := s.repo.GetAllTransactionsForOwner(
		context.Background(), owner,
	); err == nil {
		pushSnapshot(ch, snapshot)
	}
	return ch, unsubscribe, nil
}

// GetTransactions returns the owner's full history, newest first.
func (s *BridgeService) GetTransactions(
	ctx context.Context, ownerAddress string,
) ([]domain.Transaction, error) {
	if err := validateOwner(ownerAddress); err != nil {
		return nil, err
	}
	return s.repo.GetAllTransactionsForOwner(ctx, ownerAddress)
}

// ClearHistory removes the owner's settled transactions. Pending ones are
// kept untouched.
func (s *BridgeService) ClearHistory(ctx context.Context, ownerAddress string) error {
	if err := validateOwner(ownerAddress); err != nil {
		return err
	}
	if err := s.repo.DeleteSettledTransactionsForOwner(ctx, ownerAddress); err != nil {
		return err
	}
	s.publish(domain.NormalizeAddress(ownerAddress))
	return nil
}

// ResumePolling re-arms a poll task for every pollable transaction of the
// owner. It is meant to be called after a restart, when durable records
// survived but their poll tasks did not, and serves as the manual refresh
// path for transactions whose polling window expired.
func (s *BridgeService) ResumePolling(ctx context.Context, ownerAddress string) error {
	if err := validateOwner(ownerAddress); err != nil {
		return err
	}

	pending, err := s.repo.GetPendingTransactionsForOwner(ctx, ownerAddress)
	if err != nil {
		return err
	}

	for i := range pending {
		tx := pending[i]
		if !tx.IsPollable() || len(tx.SourceTxHash) <= 0 {
			continue
		}
		s.startPolling(&tx)
	}
	return nil
}

func (s *BridgeService) checkApproval(ctx context.Context, id string) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		log.WithError(err).Warnf("skipping approval check for tx %s", id)
		return
	}

	ok, err := s.wallet.HasSufficientAllowance(
		ctx, tx.SourceChain, tx.SourceAsset, tx.OwnerAddress, tx.FromAmount,
	)
	if err != nil {
		s.failTransaction(ctx, id, fmt.Sprintf("allowance check failed: %s", err))
		return
	}

	if !ok {
		if err := s.updateAndPublish(ctx, id, func(
			tx *domain.Transaction,
		) (*domain.Transaction, error) {
			if _, err := tx.RequireApproval(); err != nil {
				return nil, err
			}
			return tx, nil
		}); err != nil {
			log.WithError(err).Warnf("failed to mark tx %s as awaiting approval", id)
		}
		return
	}

	s.dispatchSource(ctx, id)
}

func (s *BridgeService) dispatchSource(ctx context.Context, id string) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		log.WithError(err).Warnf("skipping source dispatch for tx %s", id)
		return
	}

	hash, err := s.wallet.SendBridgeTx(ctx, tx)
	if err != nil {
		s.failTransaction(ctx, id, fmt.Sprintf("source tx rejected: %s", err))
		return
	}

	if err := s.updateAndPublish(ctx, id, func(
		tx *domain.Transaction,
	) (*domain.Transaction, error) {
		if _, err := tx.SendSource(hash); err != nil {
			return nil, err
		}
		return tx, nil
	}); err != nil {
		log.WithError(err).Warnf("failed to mark tx %s as pending-source", id)
		return
	}

	updated, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return
	}
	s.startPolling(updated)
}

func (s *BridgeService) startPolling(tx *domain.Transaction) {
	s.statusSvc.AddObservable(&poller.StatusObservable{
		TxID:         tx.Id,
		SourceTxHash: tx.SourceTxHash,
		SourceChain:  tx.SourceChain,
		DestChain:    tx.DestChain,
		ProviderName: tx.ProviderName,
		StartedAt:    time.Now(),
	})
}

func (s *BridgeService) listenEvents() {
	for event := range s.statusSvc.GetEventChannel() {
		switch e := event.(type) {
		case poller.QuitEvent:
			return
		case poller.StatusEvent:
			s.handleStatusEvent(e)
		}
	}
}

func (s *BridgeService) handleStatusEvent(event poller.StatusEvent) {
	ctx := context.Background()

	switch event.EventType {
	case poller.BridgeSourceConfirmed:
		if err := s.updateAndPublish(ctx, event.TxID, func(
			tx *domain.Transaction,
		) (*domain.Transaction, error) {
			if _, err := tx.ConfirmSource(); err != nil {
				return nil, err
			}
			return tx, nil
		}); err != nil {
			log.WithError(err).Warnf("failed to confirm source for tx %s", event.TxID)
		}
	case poller.BridgeCompleted:
		if err := s.updateAndPublish(ctx, event.TxID, func(
			tx *domain.Transaction,
		) (*domain.Transaction, error) {
			// the provider may report DONE before a pending-source tick
			// observed the intermediate confirmation
			if _, err := tx.ConfirmSource(); err != nil {
				return nil, err
			}
			if _, err := tx.Complete(event.DestTxHash, event.DestAmount); err != nil {
				return nil, err
			}
			return tx, nil
		}); err != nil {
			log.WithError(err).Warnf("failed to complete tx %s", event.TxID)
		}
		s.statusSvc.RemoveObservable(event.TxID)
	case poller.BridgeFailed:
		if err := s.updateAndPublish(ctx, event.TxID, func(
			tx *domain.Transaction,
		) (*domain.Transaction, error) {
			if _, err := tx.Fail(event.Reason); err != nil {
				return nil, err
			}
			return tx, nil
		}); err != nil {
			log.WithError(err).Warnf("failed to mark tx %s as failed", event.TxID)
		}
		s.statusSvc.RemoveObservable(event.TxID)
	case poller.PollTimeout:
		log.Warnf(
			"polling window expired for tx %s, state left unchanged", event.TxID,
		)
	}
}

func (s *BridgeService) failTransaction(ctx context.Context, id, reason string) {
	if err := s.updateAndPublish(ctx, id, func(
		tx *domain.Transaction,
	) (*domain.Transaction, error) {
		if _, err := tx.Fail(reason); err != nil {
			return nil, err
		}
		return tx, nil
	}); err != nil {
		log.WithError(err).Warnf("failed to mark tx %s as failed", id)
	}
}

func (s *BridgeService) updateAndPublish(
	ctx context.Context, id string,
	updateFn func(tx *domain.Transaction) (*domain.Transaction, error),
) error {
	if err := s.repo.UpdateTransaction(ctx, id, updateFn); err != nil {
		return err
	}

	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	s.publish(tx.OwnerAddress)
	return nil
}

func (s *BridgeService) publish(ownerAddress string) {
	snapshot, err := s.repo.GetAllTransactionsForOwner(
		context.Background(), ownerAddress,
	)
	if err != nil {
		log.WithError(err).Warnf(
			"failed to load history snapshot for owner %s", ownerAddress,
		)
		return
	}
	s.subs.broadcast(ownerAddress, snapshot)
}

func validateOwner(ownerAddress string) error {
	trimmed := strings.TrimSpace(ownerAddress)
	if len(trimmed) <= 0 {
		return domain.ErrTxInvalidOwner
	}
	if strings.HasPrefix(trimmed, "0x") && !common.IsHexAddress(trimmed) {
		return domain.ErrTxInvalidOwner
	}
	return nil
}
