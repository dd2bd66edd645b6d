package ports

import "github.com/xlamaexchange/bridge-daemon/internal/core/domain"

// DbManager gives access to the concrete repository implementations and to
// the lifecycle of the underlying store.
type DbManager interface {
	TransactionRepository() domain.TransactionRepository
	Close() error
}
