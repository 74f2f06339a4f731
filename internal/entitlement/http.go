package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bestof/clipper/internal/planner"
)

// ServiceError is a non-2xx response from the entitlement service.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("entitlement service: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
func (e *ServiceError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPChecker queries account tier and usage from the accounts service.
type HTTPChecker struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPChecker(baseURL, token string, logger *slog.Logger) *HTTPChecker {
	return &HTTPChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With("component", "entitlement"),
	}
}

func (c *HTTPChecker) Authorize(ctx context.Context, userID string, mode planner.Mode) error {
	if userID == "" {
		return &DeniedError{Reason: "user id is required"}
	}

	account, err := c.account(ctx, userID)
	if err != nil {
		return err
	}
	if err := account.Allows(mode); err != nil {
		c.logger.Info("clip request denied", "user_id", userID, "plan", account.Tier, "mode", mode)
		return err
	}
	return nil
}

// RecordUsage increments the user's monthly clip counter.
func (c *HTTPChecker) RecordUsage(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	resp, body, err := c.do(ctx, http.MethodPost, c.accountURL(userID)+"/usage")
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (c *HTTPChecker) account(ctx context.Context, userID string) (*Account, error) {
	resp, body, err := c.do(ctx, http.MethodGet, c.accountURL(userID))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &DeniedError{UserID: userID, Reason: "unknown user"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("decode entitlement response: %w", err)
	}
	if account.UserID == "" {
		account.UserID = userID
	}
	return &account, nil
}

func (c *HTTPChecker) accountURL(userID string) string {
	return fmt.Sprintf("%s/api/entitlements/%s", c.baseURL, url.PathEscape(userID))
}

func (c *HTTPChecker) do(ctx context.Context, method, target string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp, body, nil
}
