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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all screening routes with the router group.
//
// Description:
//
//	Registers the /v1 endpoints with the given Gin router group. The
//	group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	svc - The pipeline service
//
// Endpoints:
//
//	POST /v1/chat - Screen a message and generate a reply
//	GET  /v1/health - Liveness check
//	GET  /v1/stats - Service metadata and detection categories
func RegisterRoutes(rg *gin.RouterGroup, svc *Service) {
	rg.POST("/chat", svc.HandleChat)
	rg.GET("/health", svc.HandleHealth)
	rg.GET("/stats", svc.HandleStats)
}

// RegisterAdminRoutes registers the client administration routes.
//
// Description:
//
//	Registers the /v1/admin endpoints behind bearer token auth. Callers
//	should skip registration entirely when no token is configured.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	svc - The pipeline service
//	token - The admin bearer token. Must not be empty.
//
// Endpoints:
//
//	POST /v1/admin/create-api-key - Register a client, returning its key
//	POST /v1/admin/delete-api-key - Deactivate a client
func RegisterAdminRoutes(rg *gin.RouterGroup, svc *Service, token string) {
	admin := rg.Group("/admin", adminAuth(token))
	admin.POST("/create-api-key", svc.HandleCreateClient)
	admin.POST("/delete-api-key", svc.HandleDeactivateClient)
}
