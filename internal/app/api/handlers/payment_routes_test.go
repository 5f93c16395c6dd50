package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRegisterPaymentRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1/payments")
	RegisterPaymentRoutes(g, nil, nil)

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	require.True(t, contains("POST /api/v1/payments"))
	require.True(t, contains("GET /api/v1/payments"))
	require.True(t, contains("GET /api/v1/payments/:id"))
	require.True(t, contains("POST /api/v1/payments/webhook/:provider"))
}

func TestRegisterAdminRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), nil)

	found := false
	for _, rt := range r.Routes() {
		if rt.Method == "POST" && rt.Path == "/api/v1/admin/payments/scan" {
			found = true
		}
	}
	require.True(t, found)
}
