package x402

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Challenge transport headers. Fields are resolved header-first with the
// body as fallback: transport-level metadata is harder to spoof across
// proxies in the intended deployment, so it wins on conflict.
const (
	HeaderSessionID       = "X-Session-Id"
	HeaderPaymentAmount   = "X-Payment-Amount"
	HeaderPaymentCurrency = "X-Payment-Currency"
	HeaderPaymentNetwork  = "X-Payment-Network"
	HeaderPaymentAddress  = "X-Payment-Address"
	HeaderExpiresAt       = "X-Expires-At"
)

// flexNumber accepts both JSON numbers and numeric strings, preserving
// the decimal text verbatim.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = flexNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = flexNumber(num.String())
	return nil
}

// challengeBody is the JSON body shape of a 402 response.
type challengeBody struct {
	SessionID string     `json:"session_id"`
	Amount    flexNumber `json:"amount"`
	Currency  string     `json:"currency"`
	Network   string     `json:"network"`
	Recipient string     `json:"recipient"`
	Service   string     `json:"service"`
	RobotID   string     `json:"robot_id"`
	ExpiresAt string     `json:"expires_at"`
	Message   string     `json:"message"`
}

// DecodeChallenge parses a 402 response into a PaymentChallenge. The
// status code must be 402. Required fields (session id, amount, currency,
// network, recipient) must resolve from the headers or the body, and the
// amount must parse as a strictly positive decimal; otherwise the error
// is a ProtocolError with code ErrCodeMalformedChallenge.
func DecodeChallenge(statusCode int, header http.Header, body []byte) (PaymentChallenge, error) {
	if statusCode != http.StatusPaymentRequired {
		return PaymentChallenge{}, fmt.Errorf("expected status 402, got %d", statusCode)
	}

	var doc challengeBody
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			// A garbled body is tolerable as long as the headers carry
			// every required field.
			doc = challengeBody{}
		}
	}

	challenge := PaymentChallenge{
		SessionID:  firstOf(header.Get(HeaderSessionID), doc.SessionID),
		Amount:     firstOf(header.Get(HeaderPaymentAmount), string(doc.Amount)),
		Currency:   firstOf(header.Get(HeaderPaymentCurrency), doc.Currency),
		Network:    firstOf(header.Get(HeaderPaymentNetwork), doc.Network),
		Recipient:  firstOf(header.Get(HeaderPaymentAddress), doc.Recipient),
		Service:    doc.Service,
		ResourceID: doc.RobotID,
		Message:    doc.Message,
	}

	for _, required := range []struct {
		field string
		value string
	}{
		{"session_id", challenge.SessionID},
		{"amount", challenge.Amount},
		{"currency", challenge.Currency},
		{"network", challenge.Network},
		{"recipient", challenge.Recipient},
	} {
		if required.value == "" {
			return PaymentChallenge{}, NewProtocolError(
				ErrCodeMalformedChallenge,
				fmt.Sprintf("missing required challenge field: %s", required.field),
				nil,
			)
		}
	}

	amount, err := challenge.AmountRat()
	if err != nil || amount.Sign() <= 0 {
		return PaymentChallenge{}, NewProtocolError(
			ErrCodeMalformedChallenge,
			fmt.Sprintf("challenge amount %q is not a positive decimal", challenge.Amount),
			nil,
		)
	}

	if raw := firstOf(header.Get(HeaderExpiresAt), doc.ExpiresAt); raw != "" {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return PaymentChallenge{}, NewProtocolError(
				ErrCodeMalformedChallenge,
				fmt.Sprintf("challenge expiry %q is not an RFC 3339 timestamp", raw),
				nil,
			)
		}
		challenge.ExpiresAt = &expiresAt
	}

	return challenge, nil
}

// EncodeResumeToken encodes a resume token as the header field set to
// merge into a replayed request. Pure; the logical request body is left
// untouched.
func EncodeResumeToken(token ResumeToken) map[string]string {
	return map[string]string{
		HeaderSessionID: token.SessionID,
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
