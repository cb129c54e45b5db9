package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coopaguas/backend/internal/infrastructure/config"
	"github.com/coopaguas/backend/internal/infrastructure/gateway"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newWebhookEngine(h *PaymentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/webhook", h.GatewayWebhook)
	return engine
}

func TestPaymentHandlerGatewayWebhook(t *testing.T) {
	cardGateway := gateway.NewCardGateway(config.GatewayConfig{
		BaseURL:        "http://gateway.test",
		CommerceCode:   "597012345678",
		APIKey:         "webhook-signing-key",
		RequestTimeout: time.Second,
	})

	t.Run("rejects an unsigned notification before touching the ledger", func(t *testing.T) {
		h := NewPaymentHandler(nil, nil, cardGateway, nil)
		engine := newWebhookEngine(h)

		body := []byte(`{"buy_order":"ref-1","status":"AUTHORIZED"}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_INVALID_SIGNATURE")
	})

	t.Run("unconfigured gateway returns 503", func(t *testing.T) {
		h := NewPaymentHandler(nil, nil, nil, nil)
		engine := newWebhookEngine(h)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("{}")))
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestPaymentHandlerValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("register rejects an unknown method", func(t *testing.T) {
		h := NewPaymentHandler(nil, nil, nil, nil)
		engine := gin.New()
		engine.POST("/payments", h.Register)

		body := []byte(`{"customer_code":"SOC-001","amount":"5000","method":"BARTER"}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("reverse rejects a malformed payment ID", func(t *testing.T) {
		h := NewPaymentHandler(nil, nil, nil, nil)
		engine := gin.New()
		engine.POST("/payments/:id/reverse", h.Reverse)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments/not-a-uuid/reverse", bytes.NewReader([]byte(`{"reason":"dup"}`)))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
