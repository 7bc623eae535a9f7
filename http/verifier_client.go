package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	x402 "github.com/robomart/x402"
)

// VerifierClient talks to the trusted payment verification service over
// HTTP. It implements x402.Verifier: transport and protocol failures
// are returned as errors (retryable), while an explicit verified=false
// answer comes back in the result (final).
type VerifierClient struct {
	url        string
	httpClient *http.Client
}

// VerifierConfig configures the verifier client
type VerifierConfig struct {
	// URL is the base URL of the verification service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// verifyRequest is the wire shape of a verification call.
type verifyRequest struct {
	SessionID   string `json:"session_id"`
	TxSignature string `json:"tx_signature"`
}

// SessionStatus describes a payment session as reported by the
// verification service.
type SessionStatus struct {
	SessionID string     `json:"session_id"`
	Status    string     `json:"status"`
	Amount    string     `json:"amount,omitempty"`
	Currency  string     `json:"currency,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewVerifierClient creates a new verifier client
func NewVerifierClient(config *VerifierConfig) *VerifierClient {
	if config == nil {
		config = &VerifierConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &VerifierClient{
		url:        config.URL,
		httpClient: httpClient,
	}
}

// Verify checks a payment receipt for a session. The receipt is passed
// verbatim; this client never inspects it.
func (c *VerifierClient) Verify(ctx context.Context, sessionID, receipt string) (x402.VerificationResult, error) {
	body, err := json.Marshal(verifyRequest{
		SessionID:   sessionID,
		TxSignature: receipt,
	})
	if err != nil {
		return x402.VerificationResult{}, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/payments/verify", bytes.NewReader(body))
	if err != nil {
		return x402.VerificationResult{}, fmt.Errorf("failed to create verify request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return x402.VerificationResult{}, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return x402.VerificationResult{}, fmt.Errorf("failed to read verify response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return x402.VerificationResult{}, fmt.Errorf("verifier returned %d: %s", resp.StatusCode, string(responseBody))
	}

	var result x402.VerificationResult
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return x402.VerificationResult{}, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return result, nil
}

// SessionStatus fetches the state of a payment session.
func (c *VerifierClient) SessionStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	endpoint := c.url + "/payments/session/" + url.PathEscape(sessionID)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("failed to create session status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("session status request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("failed to read session status body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return SessionStatus{}, fmt.Errorf("session status returned %d: %s", resp.StatusCode, string(responseBody))
	}

	var status SessionStatus
	if err := json.Unmarshal(responseBody, &status); err != nil {
		return SessionStatus{}, fmt.Errorf("failed to decode session status: %w", err)
	}

	return status, nil
}
