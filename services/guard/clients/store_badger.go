// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGuard/services/guard/policy"
	"github.com/AleutianAI/AleutianGuard/services/guard/storage/badger"
)

const clientKeyPrefix = "client/"

// storedClient is the JSON shape persisted per client. Threshold
// overrides use the same nested string-map form as the YAML policy file.
type storedClient struct {
	ID           string                       `json:"id"`
	Name         string                       `json:"name,omitempty"`
	KeyDigest    string                       `json:"key_digest"`
	Active       bool                         `json:"active"`
	RateCapacity int                          `json:"rate_capacity,omitempty"`
	AllowPartial bool                         `json:"allow_partial,omitempty"`
	Thresholds   map[string]map[string]string `json:"thresholds,omitempty"`
}

// BadgerStore is a client registry persisted in BadgerDB under
// client/<id> keys.
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a registry over an open database.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	if db == nil {
		return nil, errors.New("clients: db must not be nil")
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(ctx context.Context, id string) (Client, error) {
	if err := ctx.Err(); err != nil {
		return Client{}, err
	}

	var stored storedClient
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(clientKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("clients: read %s: %w", id, err)
	}

	thresholds, err := policy.ThresholdsFromWire(stored.Thresholds)
	if err != nil {
		return Client{}, fmt.Errorf("clients: stored record for %s: %w", id, err)
	}
	return Client{
		ID:        stored.ID,
		Name:      stored.Name,
		KeyDigest: stored.KeyDigest,
		Active:    stored.Active,
		Policy: Policy{
			RateCapacity: stored.RateCapacity,
			AllowPartial: stored.AllowPartial,
			Thresholds:   thresholds,
		},
	}, nil
}

func (s *BadgerStore) Put(ctx context.Context, c Client) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(c); err != nil {
		return err
	}

	data, err := json.Marshal(storedClient{
		ID:           c.ID,
		Name:         c.Name,
		KeyDigest:    c.KeyDigest,
		Active:       c.Active,
		RateCapacity: c.Policy.RateCapacity,
		AllowPartial: c.Policy.AllowPartial,
		Thresholds:   c.Policy.Thresholds.Wire(),
	})
	if err != nil {
		return fmt.Errorf("clients: encode %s: %w", c.ID, err)
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(clientKeyPrefix+c.ID), data)
	})
	if err != nil {
		return fmt.Errorf("clients: write %s: %w", c.ID, err)
	}
	return nil
}
