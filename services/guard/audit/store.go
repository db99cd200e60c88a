// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGuard/services/guard/storage/badger"
)

// Store is the append-only audit trail persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Append writes a record. Returns ErrDuplicate if a record already
	// exists for the request ID.
	Append(ctx context.Context, rec Record) error

	// Get returns the record for a request ID, or ErrNotFound.
	Get(ctx context.Context, requestID string) (Record, error)

	// ListByClient returns up to limit records for a client, newest
	// first. limit <= 0 means no limit.
	ListByClient(ctx context.Context, clientID string, limit int) ([]Record, error)
}

// =============================================================================
// BadgerDB store
// =============================================================================

const (
	recordKeyPrefix = "audit/"
	indexKeyPrefix  = "audit_client/"
)

// BadgerStore persists the audit trail in BadgerDB.
//
// Layout: the record lives at audit/<requestID>; a secondary key at
// audit_client/<clientID>/<requestID> carries the request ID for
// per-client listing. Request IDs are UUIDv7, so index keys sort in
// creation order.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates an audit store over an open database.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	if db == nil {
		return nil, errors.New("audit: db must not be nil")
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: encode record %s: %w", rec.RequestID, err)
	}
	recordKey := []byte(recordKeyPrefix + rec.RequestID)
	indexKey := []byte(indexKeyPrefix + rec.ClientID + "/" + rec.RequestID)

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(recordKey); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(recordKey, data); err != nil {
			return err
		}
		return txn.Set(indexKey, []byte(rec.RequestID))
	})
	if errors.Is(err, ErrDuplicate) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("audit: append record %s: %w", rec.RequestID, err)
	}
	return nil
}

func (s *BadgerStore) Get(ctx context.Context, requestID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	var rec Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + requestID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("audit: read record %s: %w", requestID, err)
	}
	return rec, nil
}

func (s *BadgerStore) ListByClient(ctx context.Context, clientID string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(indexKeyPrefix + clientID + "/")
	var ids []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		// Walk in reverse so newest records come first.
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last key under the prefix.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(ids) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: list records for %s: %w", clientID, err)
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// =============================================================================
// In-memory store
// =============================================================================

// MemoryStore is an in-memory audit trail for tests.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory audit trail.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.RequestID]; exists {
		return ErrDuplicate
	}
	s.records[rec.RequestID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, requestID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[requestID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListByClient(_ context.Context, clientID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []Record
	for _, rec := range s.records {
		if rec.ClientID == clientID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RequestID > records[j].RequestID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
