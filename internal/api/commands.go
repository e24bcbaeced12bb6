package api

import (
	"context"

	"github.com/diogo/streamchat/internal/models"
)

// Instruct sets a system instruction for the session and returns the
// server's confirmation message.
func (c *Client) Instruct(ctx context.Context, instruction string) (string, error) {
	data, err := c.postJSON(ctx, models.PathInstruct, &promptRequest{Prompt: instruction})
	if err != nil {
		return "", err
	}
	return replyMessage(data, models.PathInstruct)
}

// SessionCommand runs a server-side session operation (dump, restore or
// merge) and returns its message.
func (c *Client) SessionCommand(ctx context.Context, action models.SessionAction) (string, error) {
	path := action.Path()
	data, err := c.postJSON(ctx, path, nil)
	if err != nil {
		return "", err
	}
	return replyMessage(data, path)
}
