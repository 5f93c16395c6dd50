package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fernpay/paydesk/internal/app/service/orderstore"
	"github.com/fernpay/paydesk/internal/app/service/quote"
	"github.com/fernpay/paydesk/internal/app/service/saga"
	"github.com/fernpay/paydesk/internal/models"
	"github.com/fernpay/paydesk/pkg/response"
	"github.com/fernpay/paydesk/pkg/types"
)

type submitPaymentRequest struct {
	UserID          string                `json:"user_id"`
	Type            types.PaymentType     `json:"type"`
	IdempotencyKey  string                `json:"idempotency_key"`
	SourceAccountID string                `json:"source_account_id"`
	TargetAmount    decimal.Decimal       `json:"target_amount"`
	TargetCurrency  string                `json:"target_currency"`
	UserTier        string                `json:"user_tier"`
	Details         map[string]any        `json:"details"`
	Schedule        *saga.ScheduleRequest `json:"schedule,omitempty"`
}

// respondOrder maps saga outcomes onto the response envelope. Ledger and
// provider failures still carry the order so the caller sees its final state.
func respondOrder(c *gin.Context, order *models.PaymentOrder, err error) {
	if err == nil {
		c.JSON(http.StatusOK, response.OKT(order))
		return
	}
	if errors.Is(err, saga.ErrValidation) {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	if errors.Is(err, quote.ErrRateUnavailable) || errors.Is(err, quote.ErrQuote) {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
		return
	}
	if order != nil {
		c.JSON(http.StatusOK, &response.APIResponse[*models.PaymentOrder]{
			Code:    response.APIResponseCodeError,
			Message: err.Error(),
			Data:    order,
		})
		return
	}
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
}

func ApiSubmitPayment(orch saga.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		order, err := orch.Submit(c.Request.Context(), &saga.SubmitRequest{
			UserID:          req.UserID,
			Type:            req.Type,
			IdempotencyKey:  req.IdempotencyKey,
			SourceAccountID: req.SourceAccountID,
			TargetAmount:    req.TargetAmount,
			TargetCurrency:  req.TargetCurrency,
			UserTier:        req.UserTier,
			Details:         req.Details,
			Schedule:        req.Schedule,
		})
		respondOrder(c, order, err)
	}
}

func ApiGetPayment(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "order not found"))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(order))
	}
}

type listPaymentsResponse struct {
	Items []*models.PaymentOrder `json:"items"`
	Total int64                  `json:"total"`
}

func ApiListPayments(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "user_id is required"))
			return
		}
		from, _ := strconv.Atoi(c.DefaultQuery("from", "0"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

		items, total, err := store.ListByUser(c.Request.Context(), userID, from, size)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(listPaymentsResponse{Items: items, Total: total}))
	}
}

type providerWebhookRequest struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// ApiProviderWebhook applies an asynchronous provider notification. Replays
// and callbacks for already-terminal orders return the order unchanged.
func ApiProviderWebhook(orch saga.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req providerWebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.TransactionID == "" || req.Status == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "transaction_id and status are required"))
			return
		}

		order, err := orch.Resolve(c.Request.Context(), &saga.ProviderCallback{
			Provider:      c.Param("provider"),
			TransactionID: req.TransactionID,
			Status:        req.Status,
			ErrorMessage:  req.ErrorMessage,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(order))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, orch saga.Orchestrator, store *orderstore.Store) {
	r.POST("", ApiSubmitPayment(orch))
	r.GET("", ApiListPayments(store))
	r.GET("/:id", ApiGetPayment(store))
	r.POST("/webhook/:provider", ApiProviderWebhook(orch))
}
