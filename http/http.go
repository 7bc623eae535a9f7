// Package http provides the HTTP request pipeline for the x402
// payment-challenge protocol: an intercepting RoundTripper, a client
// for the trusted verification service, and convenience wrappers.
package http

import (
	"context"
	"io"
	"net/http"

	x402 "github.com/robomart/x402"
)

// NewClient creates an http.Client whose transport drives the payment
// protocol against the given broker and verifier.
func NewClient(broker *x402.ChallengeBroker, verifier x402.Verifier, opts ...Option) *http.Client {
	return &http.Client{
		Transport: NewPaymentRoundTripper(broker, verifier, opts...),
	}
}

// WrapClient wraps an existing http.Client's transport with payment
// handling. The client is modified in place and returned.
func WrapClient(client *http.Client, broker *x402.ChallengeBroker, verifier x402.Verifier, opts ...Option) *http.Client {
	if client == nil {
		client = &http.Client{}
	}

	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	transport := NewPaymentRoundTripper(broker, verifier, opts...)
	if transport.Base == nil {
		transport.Base = base
	}
	client.Transport = transport

	return client
}

// Get performs a GET request with automatic payment handling
func Get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// Post performs a POST request with automatic payment handling
func Post(ctx context.Context, client *http.Client, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return client.Do(req)
}
