package application

import (
	"sync"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
)

// subscriberStore is a plain owner-keyed pub-sub registry. Channels hold a
// single slot carrying the latest history snapshot: a slow consumer only ever
// misses intermediate snapshots, never the most recent one.
type subscriberStore struct {
	mtx    sync.RWMutex
	nextId int
	subs   map[string]map[int]chan []domain.Transaction
}

func newSubscriberStore() *subscriberStore {
	return &subscriberStore{
		subs: map[string]map[int]chan []domain.Transaction{},
	}
}

func (s *subscriberStore) add(
	ownerAddress string,
) (chan []domain.Transaction, func()) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.nextId++
	id := s.nextId
	ch := make(chan []domain.Transaction, 1)

	if _, ok := s.subs[ownerAddress]; !ok {
		s.subs[ownerAddress] = map[int]chan []domain.Transaction{}
	}
	s.subs[ownerAddress][id] = ch

	unsubscribe := func() {
		s.mtx.Lock()
		defer s.mtx.Unlock()

		if owned, ok := s.subs[ownerAddress]; ok {
			if _, ok := owned[id]; ok {
				delete(owned, id)
				close(ch)
			}
			if len(owned) <= 0 {
				delete(s.subs, ownerAddress)
			}
		}
	}
	return ch, unsubscribe
}

func (s *subscriberStore) broadcast(
	ownerAddress string, snapshot []domain.Transaction,
) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, ch := range s.subs[ownerAddress] {
		pushSnapshot(ch, snapshot)
	}
}

// pushSnapshot replaces any undelivered snapshot with the fresh one without
// ever blocking the publisher.
func pushSnapshot(ch chan []domain.Transaction, snapshot []domain.Transaction) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
