package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fernpay/paydesk/internal/app/service/saga"
	"github.com/fernpay/paydesk/internal/models"
	"github.com/fernpay/paydesk/pkg/response"
	"github.com/fernpay/paydesk/pkg/types"
)

type stubOrchestrator struct {
	submitOrder  *models.PaymentOrder
	submitErr    error
	resolveOrder *models.PaymentOrder
	resolveErr   error
	lastSubmit   *saga.SubmitRequest
	lastCallback *saga.ProviderCallback
}

func (s *stubOrchestrator) Submit(_ context.Context, req *saga.SubmitRequest) (*models.PaymentOrder, error) {
	s.lastSubmit = req
	return s.submitOrder, s.submitErr
}

func (s *stubOrchestrator) Resolve(_ context.Context, cb *saga.ProviderCallback) (*models.PaymentOrder, error) {
	s.lastCallback = cb
	return s.resolveOrder, s.resolveErr
}

func postJSON(t *testing.T, h gin.HandlerFunc, path, routePath string, body any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST(routePath, h)

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) *response.APIResponse[json.RawMessage] {
	t.Helper()
	var env response.APIResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return &env
}

func TestApiSubmitPayment_OK(t *testing.T) {
	orch := &stubOrchestrator{
		submitOrder: &models.PaymentOrder{ID: "order-1", Status: types.OrderStatusCompleted},
	}

	w := postJSON(t, ApiSubmitPayment(orch), "/api/v1/payments", "/api/v1/payments", gin.H{
		"user_id":           "user-1",
		"type":              "BILL_PAYMENT",
		"idempotency_key":   "idem-1",
		"source_account_id": "acc-1",
		"target_amount":     "50.00",
		"target_currency":   "USD",
		"details":           gin.H{"biller_id": "b-1", "subscriber_account_number": "0801"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	require.Equal(t, response.APIResponseCodeOK, env.Code)

	var order models.PaymentOrder
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.Equal(t, "order-1", order.ID)

	require.Equal(t, "user-1", orch.lastSubmit.UserID)
	require.Equal(t, types.PaymentTypeBillPayment, orch.lastSubmit.Type)
	require.True(t, orch.lastSubmit.TargetAmount.Equal(decimal.RequireFromString("50.00")))
}

func TestApiSubmitPayment_ValidationError(t *testing.T) {
	orch := &stubOrchestrator{
		submitErr: fmt.Errorf("%w: idempotency key is required", saga.ErrValidation),
	}

	w := postJSON(t, ApiSubmitPayment(orch), "/api/v1/payments", "/api/v1/payments", gin.H{
		"user_id": "user-1", "type": "BILL_PAYMENT",
	})

	env := decodeEnvelope(t, w)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestApiSubmitPayment_ProviderFailureCarriesOrder(t *testing.T) {
	failed := &models.PaymentOrder{ID: "order-2", Status: types.OrderStatusFailed}
	orch := &stubOrchestrator{
		submitOrder: failed,
		submitErr:   fmt.Errorf("%w: aggregator 502", saga.ErrProvider),
	}

	w := postJSON(t, ApiSubmitPayment(orch), "/api/v1/payments", "/api/v1/payments", gin.H{
		"user_id": "user-1", "type": "GIFT_CARD",
	})

	env := decodeEnvelope(t, w)
	require.Equal(t, response.APIResponseCodeError, env.Code)
	require.Contains(t, env.Message, "aggregator 502")

	var order models.PaymentOrder
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.Equal(t, "order-2", order.ID)
	require.Equal(t, types.OrderStatusFailed, order.Status)
}

func TestApiProviderWebhook(t *testing.T) {
	orch := &stubOrchestrator{
		resolveOrder: &models.PaymentOrder{ID: "order-3", Status: types.OrderStatusCompleted},
	}

	w := postJSON(t, ApiProviderWebhook(orch),
		"/api/v1/payments/webhook/billaggr", "/api/v1/payments/webhook/:provider",
		gin.H{"transaction_id": "ptx-1", "status": "COMPLETED"})

	env := decodeEnvelope(t, w)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	require.Equal(t, "billaggr", orch.lastCallback.Provider)
	require.Equal(t, "ptx-1", orch.lastCallback.TransactionID)
}

func TestApiProviderWebhook_MissingFields(t *testing.T) {
	orch := &stubOrchestrator{}

	w := postJSON(t, ApiProviderWebhook(orch),
		"/api/v1/payments/webhook/billaggr", "/api/v1/payments/webhook/:provider",
		gin.H{"status": "COMPLETED"})

	env := decodeEnvelope(t, w)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	require.Nil(t, orch.lastCallback)
}

func TestApiProviderWebhook_UnknownTransaction(t *testing.T) {
	orch := &stubOrchestrator{resolveErr: errors.New("no order for provider transaction")}

	w := postJSON(t, ApiProviderWebhook(orch),
		"/api/v1/payments/webhook/billaggr", "/api/v1/payments/webhook/:provider",
		gin.H{"transaction_id": "ghost", "status": "FAILED"})

	env := decodeEnvelope(t, w)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}
