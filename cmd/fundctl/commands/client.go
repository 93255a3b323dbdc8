package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// relayClient submits requests to the ledger service as an authenticated
// caller. Network errors, 429 and 5xx responses are retried with
// exponential backoff; every other response is final.
type relayClient struct {
	base    string
	caller  common.Address
	apiKey  string
	retries int
	backoff time.Duration
	timeout time.Duration
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("ledger service returned %d: %s", e.Status, e.Message)
}

func retryable(status int) bool {
	return status == fiber.StatusTooManyRequests || status >= fiber.StatusInternalServerError
}

func (c *relayClient) post(ctx context.Context, path string, body any) ([]byte, error) {
	url := strings.TrimRight(c.base, "/") + path
	wait := c.backoff
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		agent := fiber.Post(url).
			Set(fiber.HeaderAuthorization, "Bearer "+c.apiKey).
			Set("X-Caller-Address", c.caller.Hex()).
			Timeout(c.timeout).
			JSON(body)

		status, resp, errs := agent.Bytes()
		if len(errs) > 0 {
			lastErr = errors.Join(errs...)
			continue
		}
		if status >= 200 && status < 300 {
			return resp, nil
		}

		var decoded struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(resp))
		if json.Unmarshal(resp, &decoded) == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		lastErr = &apiError{Status: status, Message: msg}
		if !retryable(status) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.retries+1, lastErr)
}
