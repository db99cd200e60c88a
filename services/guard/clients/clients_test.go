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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGuard/services/guard/classify"
	"github.com/AleutianAI/AleutianGuard/services/guard/policy"
	"github.com/AleutianAI/AleutianGuard/services/guard/storage/badger"
)

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), Client{
		ID:        "acme",
		Name:      "Acme Corp",
		KeyDigest: DigestKey("sk-acme-secret"),
		Active:    true,
		Policy:    Policy{RateCapacity: 100},
	}))
	require.NoError(t, store.Put(context.Background(), Client{
		ID:        "dormant",
		KeyDigest: DigestKey("sk-dormant-secret"),
		Active:    false,
	}))
	return store
}

func TestValidate_Success(t *testing.T) {
	v, err := NewValidator(seededStore(t))
	require.NoError(t, err)

	pol, ok := v.Validate(context.Background(), "acme", "sk-acme-secret")
	require.True(t, ok)
	require.Equal(t, 100, pol.RateCapacity)
}

func TestValidate_FailuresAreUniform(t *testing.T) {
	v, err := NewValidator(seededStore(t))
	require.NoError(t, err)

	tests := []struct {
		name     string
		clientID string
		apiKey   string
	}{
		{"unknown client", "nobody", "sk-acme-secret"},
		{"wrong key", "acme", "sk-wrong"},
		{"inactive client", "dormant", "sk-dormant-secret"},
		{"empty key", "acme", ""},
		{"empty client", "", "sk-acme-secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol, ok := v.Validate(context.Background(), tt.clientID, tt.apiKey)
			require.False(t, ok)
			require.Equal(t, Policy{}, pol, "rejected validation must not leak policy")
		})
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (Client, error) {
	return Client{}, errors.New("registry offline")
}
func (failingStore) Put(context.Context, Client) error { return nil }

func TestValidate_StoreErrorFailsClosed(t *testing.T) {
	v, err := NewValidator(failingStore{})
	require.NoError(t, err)

	_, ok := v.Validate(context.Background(), "acme", "sk-acme-secret")
	require.False(t, ok)
}

func TestMemoryStore_PutRejectsBadRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Put(ctx, Client{ID: "", KeyDigest: DigestKey("k")})
	require.Error(t, err)

	err = store.Put(ctx, Client{ID: "x", KeyDigest: "not-a-digest"})
	require.Error(t, err)
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewBadgerStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	want := Client{
		ID:        "acme",
		Name:      "Acme Corp",
		KeyDigest: DigestKey("sk-acme-secret"),
		Active:    true,
		Policy: Policy{
			RateCapacity: 50,
			AllowPartial: true,
			Thresholds: policy.Thresholds{
				{Category: classify.CategoryFraud, Severity: classify.SeverityMedium}: policy.ActionBlock,
			},
		},
	}
	require.NoError(t, store.Put(ctx, want))

	got, err := store.Get(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.KeyDigest, got.KeyDigest)
	require.True(t, got.Active)
	require.Equal(t, 50, got.Policy.RateCapacity)
	require.True(t, got.Policy.AllowPartial)
	require.Equal(t, policy.ActionBlock,
		got.Policy.Thresholds[policy.Key{Category: classify.CategoryFraud, Severity: classify.SeverityMedium}])
}

func TestBadgerStore_GetMissing(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewBadgerStore(db)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValidator_ValidatesWithBadgerStore(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewBadgerStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), Client{
		ID:        "acme",
		KeyDigest: DigestKey("sk-acme-secret"),
		Active:    true,
	}))

	v, err := NewValidator(store)
	require.NoError(t, err)

	_, ok := v.Validate(context.Background(), "acme", "sk-acme-secret")
	require.True(t, ok)
	_, ok = v.Validate(context.Background(), "acme", "sk-bogus")
	require.False(t, ok)
}
