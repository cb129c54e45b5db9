package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

const (
	createTransactionPath = "/api/v1/transactions"
	queryTransactionPath  = "/api/v1/transactions/%s"

	signatureHeader = "X-Gateway-Signature"
)

// CreateTransactionRequest asks the gateway to open a card transaction
type CreateTransactionRequest struct {
	Reference string          `json:"buy_order"`
	Amount    decimal.Decimal `json:"amount"`
	ReturnURL string          `json:"return_url"`
}

// CreateTransactionResponse carries the redirect the customer must follow
type CreateTransactionResponse struct {
	Reference   string `json:"buy_order"`
	Token       string `json:"token"`
	RedirectURL string `json:"url"`
}

// TransactionStatus is the gateway's view of a transaction
type TransactionStatus struct {
	Reference    string          `json:"buy_order"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	AuthorizedAt *time.Time      `json:"authorized_at,omitempty"`
}

// WebhookPayload is the gateway's asynchronous notification body
type WebhookPayload struct {
	Reference    string     `json:"buy_order"`
	Status       string     `json:"status"` // AUTHORIZED or FAILED
	AuthorizedAt *time.Time `json:"authorized_at,omitempty"`
}

// Authorized reports whether the notification confirms the charge
func (p *WebhookPayload) Authorized() bool {
	return p.Status == "AUTHORIZED"
}

// CardGateway is an HTTP adapter for the cooperative's card payment
// provider. The provider's reference stays opaque end to end; it is only
// matched back to the registered payment.
type CardGateway struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
}

// NewCardGateway creates a new card gateway adapter
func NewCardGateway(cfg config.GatewayConfig) *CardGateway {
	return &CardGateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// CreateTransaction opens a card transaction and returns the redirect URL
func (g *CardGateway) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*CreateTransactionResponse, error) {
	if req.Reference == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Transaction reference is required")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Transaction amount must be positive")
	}

	respBody, err := g.doRequest(ctx, http.MethodPost, createTransactionPath, req)
	if err != nil {
		return nil, err
	}

	var resp CreateTransactionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("gateway: failed to parse create response: %w", err)
	}
	return &resp, nil
}

// QueryTransaction fetches the current status of a transaction
func (g *CardGateway) QueryTransaction(ctx context.Context, reference string) (*TransactionStatus, error) {
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Transaction reference is required")
	}

	path := fmt.Sprintf(queryTransactionPath, reference)
	respBody, err := g.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var status TransactionStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, fmt.Errorf("gateway: failed to parse query response: %w", err)
	}
	return &status, nil
}

// ParseWebhook verifies the notification signature and decodes the payload.
// The signature is an HMAC-SHA256 of the raw body keyed with the API key.
func (g *CardGateway) ParseWebhook(body []byte, signature string) (*WebhookPayload, error) {
	if !g.verifySignature(body, signature) {
		return nil, shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("gateway: failed to parse webhook payload: %w", err)
	}
	if payload.Reference == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook payload has no reference")
	}
	return &payload, nil
}

// SignatureHeader returns the header carrying the webhook signature
func (g *CardGateway) SignatureHeader() string {
	return signatureHeader
}

func (g *CardGateway) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.cfg.APIKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *CardGateway) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tbk-Api-Key-Id", g.cfg.CommerceCode)
	req.Header.Set("Tbk-Api-Key-Secret", g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
