package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/diogo/streamchat/internal/models"
)

// MaxUploadSize is the largest file the client will offer for upload
const MaxUploadSize = 20 * 1024 * 1024 // 20MB

// SupportedFileTypes asks the server which file extensions it accepts.
// Extensions are returned lower-case with a leading dot.
func (c *Client) SupportedFileTypes(ctx context.Context) ([]string, error) {
	data, err := c.postJSON(ctx, models.PathChat, &promptRequest{Prompt: models.CommandGetFileTypes})
	if err != nil {
		return nil, err
	}
	return parseFileTypes(string(data)), nil
}

func parseFileTypes(body string) []string {
	var types []string
	for _, ext := range strings.Split(strings.TrimSpace(body), ",") {
		ext = strings.ToLower(strings.Trim(strings.TrimSpace(ext), `"`))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		types = append(types, ext)
	}
	return types
}

// Upload asks the server to ingest the file at path. The file must exist
// locally, have a supported extension and be at most MaxUploadSize bytes.
// It returns the server's confirmation.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxUploadSize {
		return "", fmt.Errorf("file size exceeds maximum %d bytes", MaxUploadSize)
	}

	types, err := c.SupportedFileTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get supported file types: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(abs))
	if !slices.Contains(types, ext) {
		return "", fmt.Errorf("unsupported file type %q (supported: %s)", ext, strings.Join(types, ", "))
	}

	data, err := c.postJSON(ctx, models.PathUpload, &promptRequest{Prompt: abs})
	if err != nil {
		return "", err
	}
	c.logger.Info("file uploaded", "path", abs, "size", info.Size())

	if msg := gjson.GetBytes(data, PathMessage); gjson.ValidBytes(data) && msg.Exists() {
		return msg.String(), nil
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text, nil
	}
	return "Uploaded: " + path, nil
}
