package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/edvin/peacock/internal/model"
)

// Callback contains the activity notifying API callers that asked for a
// callback when their request has been processed.
type Callback struct {
	client *http.Client
}

// NewCallback creates a new Callback activity struct.
func NewCallback() *Callback {
	return &Callback{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendCallbackParams holds parameters for the SendCallback activity.
type SendCallbackParams struct {
	URL     string                `json:"url"`
	Payload model.CallbackPayload `json:"payload"`
}

// SendCallback POSTs the payload to the callback URL. Client errors (4xx)
// are not retried; server and network errors are.
func (a *Callback) SendCallback(ctx context.Context, params SendCallbackParams) error {
	body, err := json.Marshal(params.Payload)
	if err != nil {
		return temporal.NewNonRetryableApplicationError("marshal callback payload", "MARSHAL_ERROR", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, params.URL, bytes.NewReader(body))
	if err != nil {
		return temporal.NewNonRetryableApplicationError("create callback request", "REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback POST to %s: %w", params.URL, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("callback for %s returned %d", params.Payload.RequestID, resp.StatusCode),
			"CLIENT_ERROR", nil)
	}
	return fmt.Errorf("callback for %s returned %d", params.Payload.RequestID, resp.StatusCode)
}
