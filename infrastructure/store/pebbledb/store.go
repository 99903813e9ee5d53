// Package pebbledb persists submission handles and resolved receipts so that a
// crashed watcher can resume receipt resolution for transactions it already
// broadcast.
package pebbledb

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/availkit/go-node-client/entities"
)

const (
	submissionKeyPrefix = 0x00
	receiptKeyPrefix    = 0x01
)

type Store struct {
	db *pebble.DB
}

func NewJournalStore(storeDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "submission-journal"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}

	return &Store{db: db}, nil
}

func submissionKey(txHash entities.Hash) []byte {
	return append([]byte{submissionKeyPrefix}, txHash[:]...)
}

func receiptKey(txHash entities.Hash) []byte {
	return append([]byte{receiptKeyPrefix}, txHash[:]...)
}

// SaveSubmission journals a broadcast transaction before receipt resolution
// starts. Sync write: a crash right after broadcasting must not lose the
// handle.
func (s *Store) SaveSubmission(sub entities.SubmittedTransaction) error {
	value, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshalling submission: %v", err)
	}
	if err := s.db.Set(submissionKey(sub.TxHash), value, pebble.Sync); err != nil {
		return fmt.Errorf("saving submission: %v", err)
	}
	return nil
}

func (s *Store) GetSubmission(txHash entities.Hash) (entities.SubmittedTransaction, error) {
	var sub entities.SubmittedTransaction
	value, closer, err := s.db.Get(submissionKey(txHash))
	if errors.Is(err, pebble.ErrNotFound) {
		return sub, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return sub, fmt.Errorf("getting submission: %v", err)
	}
	defer closer.Close()

	if err := json.Unmarshal(value, &sub); err != nil {
		return sub, fmt.Errorf("unmarshalling submission: %v", err)
	}
	return sub, nil
}

// GetPendingSubmissions returns every journaled submission without a stored
// receipt, in key order. These are the transactions a restarted watcher still
// owes a resolution.
func (s *Store) GetPendingSubmissions() ([]entities.SubmittedTransaction, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{submissionKeyPrefix},
		UpperBound: []byte{receiptKeyPrefix},
	})
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %v", err)
	}
	defer iter.Close()

	var pending []entities.SubmittedTransaction
	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("getting value from iter: %v", err)
		}

		var sub entities.SubmittedTransaction
		if err := json.Unmarshal(value, &sub); err != nil {
			return nil, fmt.Errorf("unmarshalling submission: %v", err)
		}

		resolved, err := s.hasReceipt(sub.TxHash)
		if err != nil {
			return nil, err
		}
		if !resolved {
			pending = append(pending, sub)
		}
	}

	return pending, nil
}

// receiptRecord distinguishes a found receipt from a terminally expired
// mortality window; both end the pending state.
type receiptRecord struct {
	Expired bool                         `json:"expired"`
	Receipt *entities.TransactionReceipt `json:"receipt,omitempty"`
}

// SaveReceipt records the resolution outcome. A nil receipt marks the
// mortality window as expired without a match.
func (s *Store) SaveReceipt(txHash entities.Hash, receipt *entities.TransactionReceipt) error {
	value, err := json.Marshal(receiptRecord{Expired: receipt == nil, Receipt: receipt})
	if err != nil {
		return fmt.Errorf("marshalling receipt: %v", err)
	}
	if err := s.db.Set(receiptKey(txHash), value, pebble.Sync); err != nil {
		return fmt.Errorf("saving receipt: %v", err)
	}
	return nil
}

// GetReceipt returns the stored resolution. A nil receipt with a nil error
// means the window expired; ErrStoreEntityNotFound means the transaction is
// still unresolved.
func (s *Store) GetReceipt(txHash entities.Hash) (*entities.TransactionReceipt, error) {
	value, closer, err := s.db.Get(receiptKey(txHash))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %v", err)
	}
	defer closer.Close()

	var record receiptRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("unmarshalling receipt: %v", err)
	}
	return record.Receipt, nil
}

func (s *Store) hasReceipt(txHash entities.Hash) (bool, error) {
	_, closer, err := s.db.Get(receiptKey(txHash))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking receipt: %v", err)
	}
	defer closer.Close()
	return true, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
