// internal/gateway/http_client.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wallet-ledger/internal/resilience"
)

// HTTPClient talks to the payment gateway's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewHTTPClient creates an HTTPClient. Calls run behind breaker.
func NewHTTPClient(baseURL, apiKey string, httpClient *http.Client, breaker *resilience.Breaker) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		breaker:    breaker,
	}
}

// CreatePayment POSTs req to {baseURL}/payments. Network failures, 5xx
// answers and an open breaker return *util.ExternalServiceError; a 4xx is
// returned as a plain error.
func (c *HTTPClient) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to encode payment request: %w", err)
	}

	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
		if err != nil {
			return nil, &resilience.PermanentError{Err: err}
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, &resilience.PermanentError{Err: fmt.Errorf("gateway rejected payment %s: %d %s", req.OrderID, resp.StatusCode, strings.TrimSpace(string(payload)))}
		}

		var intent PaymentIntent
		if err := json.Unmarshal(payload, &intent); err != nil {
			return nil, fmt.Errorf("gateway: invalid response body: %w", err)
		}
		return &intent, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*PaymentIntent), nil
}
