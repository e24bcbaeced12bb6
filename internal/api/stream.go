package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/models"
)

const (
	maxErrorBody = 4 << 10
	maxReplyBody = 1 << 20
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// OpenStream posts prompt to path and returns the event-stream body.
// The caller owns the body. Cancelling ctx aborts the request.
func (c *Client) OpenStream(ctx context.Context, path, prompt string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, path, &promptRequest{Prompt: prompt}, models.StreamHeaders())
	if err != nil {
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, fmt.Errorf("%s: %w", path, apierrors.ErrNoBody)
	}

	c.logger.Debug("stream opened", "path", path, "status", resp.StatusCode)
	return resp.Body, nil
}

// postJSON posts body to path and returns the whole reply. A nil body sends
// an empty request.
func (c *Client) postJSON(ctx context.Context, path string, body *promptRequest) ([]byte, error) {
	resp, err := c.do(ctx, path, body, models.DefaultHeaders())
	if err != nil {
		return nil, err
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()
	if resp.Body == nil {
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("read reply", path, err)
	}
	return data, nil
}

// do sends one authenticated POST and checks the status code.
// On success the caller closes the response body.
func (c *Client) do(ctx context.Context, path string, body *promptRequest, headers map[string]string) (*http.Response, error) {
	session, err := c.activeSession()
	if err != nil {
		return nil, err
	}
	token, err := session.Token()
	if err != nil {
		return nil, err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	for key, value := range c.GetModel().Header() {
		req.Header.Set(key, value)
	}
	req.Header.Set(models.HeaderAuthorization, "Bearer "+token)
	req.Header.Set(models.HeaderSessionID, session.ID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, apierrors.NewNetworkErrorWithEndpoint("POST", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() {
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
		}()
		return nil, statusError(resp, path)
	}
	return resp, nil
}

// statusError builds an APIError from a non-2xx response, using the
// server's detail or error field as the message when present.
func statusError(resp *http.Response, path string) error {
	var errorBody []byte
	if resp.Body != nil {
		errorBody, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}

	message := "request failed"
	if gjson.ValidBytes(errorBody) {
		doc := gjson.ParseBytes(errorBody)
		for _, p := range []string{PathDetail, PathError, PathMessage} {
			if v := doc.Get(p); v.Exists() && v.String() != "" {
				return apierrors.NewAPIError(resp.StatusCode, path, v.String())
			}
		}
	}
	if text := strings.TrimSpace(string(errorBody)); text != "" {
		return apierrors.NewAPIError(resp.StatusCode, path, message).WithBody(text)
	}
	return apierrors.NewAPIError(resp.StatusCode, path, message)
}

// replyMessage extracts the message field of a JSON reply.
func replyMessage(data []byte, path string) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", apierrors.NewParseError(fmt.Sprintf("%s returned non-JSON reply", path), string(data))
	}
	msg := gjson.GetBytes(data, PathMessage)
	if !msg.Exists() {
		return "", apierrors.NewParseError(fmt.Sprintf("%s reply has no %q field", path, PathMessage), string(data))
	}
	return msg.String(), nil
}
