package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coopaguas/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway(baseURL string) *CardGateway {
	return NewCardGateway(config.GatewayConfig{
		BaseURL:        baseURL,
		CommerceCode:   "597055555532",
		APIKey:         "secret-key",
		RequestTimeout: 5 * time.Second,
	})
}

func sign(body []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the order and returns the redirect", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, createTransactionPath, r.URL.Path)
			assert.Equal(t, "597055555532", r.Header.Get("Tbk-Api-Key-Id"))

			var req CreateTransactionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "PAY-001", req.Reference)

			json.NewEncoder(w).Encode(CreateTransactionResponse{
				Reference:   req.Reference,
				Token:       "tok-abc",
				RedirectURL: "https://pay.example.cl/tok-abc",
			})
		}))
		defer server.Close()

		resp, err := testGateway(server.URL).CreateTransaction(ctx, CreateTransactionRequest{
			Reference: "PAY-001",
			Amount:    decimal.NewFromInt(8000),
			ReturnURL: "https://coop.example.cl/return",
		})
		require.NoError(t, err)
		assert.Equal(t, "tok-abc", resp.Token)
		assert.Equal(t, "https://pay.example.cl/tok-abc", resp.RedirectURL)
	})

	t.Run("rejects a non-positive amount locally", func(t *testing.T) {
		_, err := testGateway("http://unused").CreateTransaction(ctx, CreateTransactionRequest{
			Reference: "PAY-001",
			Amount:    decimal.Zero,
		})
		assert.Error(t, err)
	})

	t.Run("surfaces gateway errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "commerce not found", http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		_, err := testGateway(server.URL).CreateTransaction(ctx, CreateTransactionRequest{
			Reference: "PAY-001",
			Amount:    decimal.NewFromInt(8000),
		})
		assert.Error(t, err)
	})
}

func TestQueryTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches the transaction by reference", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/transactions/PAY-001", r.URL.Path)
			json.NewEncoder(w).Encode(TransactionStatus{
				Reference: "PAY-001",
				Status:    "AUTHORIZED",
				Amount:    decimal.NewFromInt(8000),
			})
		}))
		defer server.Close()

		status, err := testGateway(server.URL).QueryTransaction(ctx, "PAY-001")
		require.NoError(t, err)
		assert.Equal(t, "AUTHORIZED", status.Status)
	})

	t.Run("rejects an empty reference", func(t *testing.T) {
		_, err := testGateway("http://unused").QueryTransaction(ctx, "")
		assert.Error(t, err)
	})
}

func TestParseWebhook(t *testing.T) {
	g := testGateway("http://unused")

	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		body := []byte(`{"buy_order":"PAY-001","status":"AUTHORIZED"}`)
		payload, err := g.ParseWebhook(body, sign(body, "secret-key"))
		require.NoError(t, err)
		assert.Equal(t, "PAY-001", payload.Reference)
		assert.True(t, payload.Authorized())
	})

	t.Run("rejects a bad signature", func(t *testing.T) {
		body := []byte(`{"buy_order":"PAY-001","status":"AUTHORIZED"}`)
		_, err := g.ParseWebhook(body, sign(body, "wrong-key"))
		assert.Error(t, err)
	})

	t.Run("rejects a payload without a reference", func(t *testing.T) {
		body := []byte(`{"status":"AUTHORIZED"}`)
		_, err := g.ParseWebhook(body, sign(body, "secret-key"))
		assert.Error(t, err)
	})

	t.Run("a failed charge is not authorized", func(t *testing.T) {
		body := []byte(`{"buy_order":"PAY-002","status":"FAILED"}`)
		payload, err := g.ParseWebhook(body, sign(body, "secret-key"))
		require.NoError(t, err)
		assert.False(t, payload.Authorized())
	})
}
