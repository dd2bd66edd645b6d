package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/xlamaexchange/bridge-daemon/internal/core/domain"
	"github.com/xlamaexchange/bridge-daemon/internal/core/ports"
)

// DbManager holds the badgerhold store and the repositories built on it.
type DbManager struct {
	Store *badgerhold.Store

	txRepository domain.TransactionRepository
}

// NewDbManager opens (or creates if not exists) the badger store on disk in a
// dedicated directory of the given base data dir. historyLimit caps the number
// of transaction records kept per owner.
func NewDbManager(
	baseDbDir string, logger badger.Logger, historyLimit int,
) (ports.DbManager, error) {
	store, err := createDb(baseDbDir+"/transactions", logger)
	if err != nil {
		return nil, fmt.Errorf("opening transactions db: %w", err)
	}

	manager := &DbManager{Store: store}
	manager.txRepository = NewTransactionRepositoryImpl(manager, historyLimit)
	return manager, nil
}

// TransactionRepository implements the ports.DbManager interface.
func (d *DbManager) TransactionRepository() domain.TransactionRepository {
	return d.txRepository
}

// Close implements the ports.DbManager interface.
func (d *DbManager) Close() error {
	return d.Store.Close()
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (db *badgerhold.Store, err error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	db, err = badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})

	return
}
