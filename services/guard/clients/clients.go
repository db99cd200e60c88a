// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package clients holds the client registry and API key validation.
//
// Keys are never stored or compared in plaintext. The registry holds the
// SHA-256 digest of each key and validation compares digests in constant
// time. Every failure mode (unknown client, inactive client, wrong key)
// is indistinguishable to the caller.
package clients

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianGuard/services/guard/policy"
)

// ErrNotFound is returned by Store.Get when no client has the given ID.
var ErrNotFound = errors.New("clients: not found")

// Policy is the per-client enforcement configuration attached to every
// validated request.
type Policy struct {
	// RateCapacity is the client's per-window request allowance.
	// Zero means the server default applies.
	RateCapacity int

	// AllowPartial, when set, lets blocked responses carry the
	// category-specific message. When unset, blocked responses carry
	// only a generic refusal so no classification detail leaks.
	AllowPartial bool

	// Thresholds overrides cells of the default enforcement table.
	Thresholds policy.Thresholds
}

// Client is one registered API consumer.
type Client struct {
	ID        string
	Name      string
	KeyDigest string // hex-encoded SHA-256 of the API key
	Active    bool
	Policy    Policy
}

// DigestKey returns the hex-encoded SHA-256 digest of an API key.
func DigestKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// Store is the client registry persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the client with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (Client, error)

	// Put inserts or replaces a client record.
	Put(ctx context.Context, c Client) error
}

// Validator authenticates requests against the registry.
type Validator struct {
	store Store
}

// NewValidator creates a Validator over the given registry.
func NewValidator(store Store) (*Validator, error) {
	if store == nil {
		return nil, errors.New("clients: store must not be nil")
	}
	return &Validator{store: store}, nil
}

// dummyDigest is compared against when the client ID is unknown, so a
// probe for valid IDs costs the same as a wrong key.
var dummyDigest = DigestKey("")

// Validate checks a (clientID, apiKey) pair against the registry.
//
// Description:
//
//	Fails closed: unknown IDs, registry read errors, inactive clients,
//	and digest mismatches all return (Policy{}, false). The presented
//	key is always hashed and compared in constant time, including when
//	the lookup failed, so the failure modes are timing-uniform.
//
// Inputs:
//   - ctx: Request context for the registry read.
//   - clientID: The caller-supplied client identifier.
//   - apiKey: The caller-supplied API key, plaintext.
//
// Outputs:
//   - Policy: The client's policy. Zero-valued unless ok.
//   - bool: True only for an active client with a matching key.
//
// Thread Safety: Safe for concurrent use.
func (v *Validator) Validate(ctx context.Context, clientID, apiKey string) (Policy, bool) {
	if clientID == "" || apiKey == "" {
		return Policy{}, false
	}

	presented := DigestKey(apiKey)

	client, err := v.store.Get(ctx, clientID)
	stored := client.KeyDigest
	if err != nil || stored == "" {
		stored = dummyDigest
	}

	match := subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
	if err != nil || !match || !client.Active {
		return Policy{}, false
	}
	return client.Policy, true
}

// validate rejects records that would corrupt the registry.
func validate(c Client) error {
	if c.ID == "" {
		return errors.New("clients: client ID must not be empty")
	}
	if len(c.KeyDigest) != hex.EncodedLen(sha256.Size) {
		return fmt.Errorf("clients: key digest for %s is not a SHA-256 hex digest", c.ID)
	}
	if _, err := hex.DecodeString(c.KeyDigest); err != nil {
		return fmt.Errorf("clients: key digest for %s is not valid hex: %w", c.ID, err)
	}
	return nil
}
