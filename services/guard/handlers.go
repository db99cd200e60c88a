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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGuard/services/guard/classify"
)

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

// HandleChat serves POST /v1/chat.
//
// Description:
//
//	Decodes and validates the body, runs the pipeline, and encodes the
//	terminal Result. Requests missing required fields are rejected with
//	400 before a request ID is minted and are not audited.
func (s *Service) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, validationErrorResponse{
			Success:   false,
			Error:     "Missing required fields: text, apiKey, clientId",
			Timestamp: timestamp(time.Time{}),
		})
		return
	}

	res := s.Screen(c.Request.Context(), req)

	switch res.Kind {
	case KindOK:
		c.JSON(http.StatusOK, successResponse{
			Success:     true,
			RequestID:   res.RequestID,
			Status:      "success",
			IsSafe:      true,
			SafetyScore: res.Verdict.RiskScore,
			Category:    string(res.Verdict.Category),
			Severity:    string(res.Verdict.Severity),
			Response:    res.Response,
			Timestamp:   timestamp(res.Timestamp),
		})
	case KindBlocked:
		c.JSON(http.StatusOK, blockedResponse{
			Success:     false,
			RequestID:   res.RequestID,
			Status:      "blocked",
			IsSafe:      false,
			SafetyScore: res.Verdict.RiskScore,
			Category:    string(res.Verdict.Category),
			Severity:    string(res.Verdict.Severity),
			Action:      string(res.Outcome.Action),
			Message:     res.Outcome.Message,
			Timestamp:   timestamp(res.Timestamp),
		})
	case KindUnauthorized:
		c.JSON(http.StatusUnauthorized, authErrorResponse{
			Success:   false,
			RequestID: res.RequestID,
			Status:    "error",
			Error:     "Invalid API key or client",
			Timestamp: timestamp(res.Timestamp),
		})
	case KindRateLimited:
		c.JSON(http.StatusTooManyRequests, rateLimitedResponse{
			Success:   false,
			RequestID: res.RequestID,
			Status:    "rate_limited",
			Error:     "Rate limit exceeded",
			Timestamp: timestamp(res.Timestamp),
		})
	default:
		c.JSON(http.StatusInternalServerError, serverErrorResponse{
			Success:   false,
			Error:     "Internal server error",
			Message:   "Processing failed",
			Timestamp: timestamp(res.Timestamp),
		})
	}
}

// HandleHealth serves GET /v1/health.
func (s *Service) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": timestamp(time.Time{}),
		"services": gin.H{
			"api":        "active",
			"database":   "connected",
			"classifier": "configured",
		},
	})
}

// HandleStats serves GET /v1/stats.
func (s *Service) HandleStats(c *gin.Context) {
	categories := make([]string, 0, len(classify.Categories))
	for _, cat := range classify.Categories {
		if cat == classify.CategoryUnknown || cat == classify.CategoryNormal {
			continue
		}
		categories = append(categories, string(cat))
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp":      timestamp(time.Time{}),
		"system_status":  "healthy",
		"api_version":    "v1",
		"uptime_seconds": int64(s.Uptime().Seconds()),
		"endpoints": gin.H{
			"chat":   "/v1/chat",
			"health": "/v1/health",
			"stats":  "/v1/stats",
		},
		"features": gin.H{
			"safety_detection": true,
			"llm_response":     true,
			"request_logging":  true,
			"audit_trail":      true,
		},
		"detection_categories": categories,
	})
}
