// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guard

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGuard/services/guard/clients"
)

// apiKeyBytes is the entropy of a generated API key. Keys are presented
// as "sk-" plus the hex encoding, so 32 bytes yields a 67-char key.
const apiKeyBytes = 32

type createClientRequest struct {
	Name string `json:"name" binding:"required"`
}

type deactivateClientRequest struct {
	ClientID string `json:"clientId" binding:"required"`
}

// adminAuth gates the administration endpoints behind a bearer token.
// The comparison is constant-time, like API key validation.
func adminAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		presented, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Unauthorized",
			})
			return
		}
		c.Next()
	}
}

// HandleCreateClient serves POST /v1/admin/create-api-key.
//
// Description:
//
//	Registers a new active client under a generated client ID and API
//	key. Only the key's digest is persisted; the plaintext key appears
//	once, in this response.
func (s *Service) HandleCreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Name is required"})
		return
	}

	key, err := generateAPIKey()
	if err != nil {
		s.logger.Error("api key generation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	client := clients.Client{
		ID:        uuid.NewString(),
		Name:      req.Name,
		KeyDigest: clients.DigestKey(key),
		Active:    true,
	}
	if err := s.registry.Put(c.Request.Context(), client); err != nil {
		s.logger.Error("client registration failed",
			slog.String("client_id", client.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	s.logger.Info("client registered",
		slog.String("client_id", client.ID),
		slog.String("name", client.Name),
	)
	c.JSON(http.StatusCreated, gin.H{
		"message":  "API key created",
		"clientId": client.ID,
		"key":      key,
	})
}

// HandleDeactivateClient serves POST /v1/admin/delete-api-key.
//
// Description:
//
//	Deactivates the client so its key stops validating. The record and
//	its audit trail remain; there is no hard delete.
func (s *Service) HandleDeactivateClient(c *gin.Context) {
	var req deactivateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Client ID is required"})
		return
	}

	ctx := c.Request.Context()
	client, err := s.registry.Get(ctx, req.ClientID)
	if errors.Is(err, clients.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "API key not found"})
		return
	}
	if err != nil {
		s.logger.Error("client lookup failed",
			slog.String("client_id", req.ClientID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	client.Active = false
	if err := s.registry.Put(ctx, client); err != nil {
		s.logger.Error("client deactivation failed",
			slog.String("client_id", req.ClientID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	s.logger.Info("client deactivated", slog.String("client_id", req.ClientID))
	c.JSON(http.StatusOK, gin.H{"message": "API key deleted successfully"})
}

// generateAPIKey returns a fresh random API key.
func generateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "sk-" + hex.EncodeToString(buf), nil
}
