package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExportFormat selects the layout written by Export
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// FormatForPath picks the export format from a file extension
func FormatForPath(path string) ExportFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ExportFormatJSON
	}
	return ExportFormatMarkdown
}

// WriteMarkdown writes t as a markdown document
func WriteMarkdown(w io.Writer, t Transcript) error {
	var sb strings.Builder

	sb.WriteString("# Conversation\n\n")
	for i, msg := range t.msgs {
		role := "User"
		if msg.Role == RoleAssistant {
			role = "Assistant"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		sb.WriteString("\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if i < len(t.msgs)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteJSON writes t as {"messages":[{"role":...,"content":...}]}
func WriteJSON(w io.Writer, t Transcript) error {
	export := struct {
		Messages []Message `json:"messages"`
	}{
		Messages: t.Messages(),
	}
	if export.Messages == nil {
		export.Messages = []Message{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

// SaveFile exports t to path, choosing the format from its extension.
func SaveFile(path string, t Transcript) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	switch FormatForPath(path) {
	case ExportFormatJSON:
		err = WriteJSON(f, t)
	default:
		err = WriteMarkdown(f, t)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
