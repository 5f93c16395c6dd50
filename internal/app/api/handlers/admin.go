package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fernpay/paydesk/internal/app/service/orderstore"
	"github.com/fernpay/paydesk/pkg/response"
)

// ApiScanPayments is the back-office listing: arbitrary field filters over
// all users' orders with pagination and sorting.
func ApiScanPayments(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orderstore.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := store.Scan(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, store *orderstore.Store) {
	r.POST("/payments/scan", ApiScanPayments(store))
}
