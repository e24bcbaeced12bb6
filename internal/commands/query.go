package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/diogo/streamchat/internal/api"
	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/render"
	"github.com/diogo/streamchat/internal/transcript"
)

var (
	colorText     = lipgloss.Color("#c0caf5")
	colorTextDim  = lipgloss.Color("#565f89")
	colorTextMute = lipgloss.Color("#3b4261")
	colorSuccess  = lipgloss.Color("#9ece6a")
	colorPrimary  = lipgloss.Color("#7aa2f7")
	colorError    = lipgloss.Color("#f7768e")
)

// Styles matching the chat TUI
var (
	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	assistantBubbleStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Foreground(colorText).
				Padding(0, 1).
				MarginTop(1).
				MarginBottom(1)

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colorError)
	dimStyle     = lipgloss.NewStyle().Foreground(colorTextDim)
)

// replyWriter copies the growth of the last reply to w as snapshots arrive
type replyWriter struct {
	mu      sync.Mutex
	w       io.Writer
	written int
	err     error
}

func (r *replyWriter) observe(snap transcript.Snapshot) {
	msg, ok := snap.Transcript.Last()
	if !ok || msg.Role != transcript.RoleAssistant {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || len(msg.Content) <= r.written {
		return
	}
	_, r.err = io.WriteString(r.w, msg.Content[r.written:])
	r.written = len(msg.Content)
}

// result returns how many bytes were written and the first write error
func (r *replyWriter) result() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written, r.err
}

// runQuery streams the reply to a single prompt
func runQuery(ctx context.Context, deps *Dependencies, s *Settings, prompt string, opts *queryOptions) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	logger := logging.New(deps.Stderr, s.Verbose)
	logger.Debug("query", "model", modelLabel(s.Model), "server", s.Config.ServerURL, "timeout", s.Timeout)

	client, err := deps.connect(s, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if opts.persona != "" {
		if err := applyPersona(ctx, client, opts.persona, logger); err != nil {
			return err
		}
	}

	decorated := opts.markdown && deps.StdoutIsTTY()

	asmOpts := []transcript.Option{
		transcript.WithTimeout(s.Timeout),
		transcript.WithTrimLeadingSpace(s.Config.TrimLeadingSpace),
		transcript.WithLogger(logger),
	}
	var out *replyWriter
	if !decorated && opts.output == "" {
		out = &replyWriter{w: deps.Stdout}
		asmOpts = append(asmOpts, transcript.WithObserver(out.observe))
	}
	asm := transcript.New(client, asmOpts...)

	var spin *spinner
	if decorated {
		spin = newSpinner(deps.Stderr, "Waiting for "+modelLabel(s.Model)).start()
	}

	startTime := time.Now()
	err = asm.Send(ctx, prompt)
	logger.Debug("reply finished", "took", time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		if spin != nil {
			spin.stopWithError()
		}
		return fmt.Errorf("query failed: %w", err)
	}

	t := asm.Transcript()
	text := t.LastReply()

	if ctx.Err() != nil {
		if spin != nil {
			spin.stopWithError()
		}
		if out != nil {
			if n, _ := out.result(); n > 0 {
				fmt.Fprintln(deps.Stdout)
			}
		}
		fmt.Fprintln(deps.Stderr, warnStyle.Render("✗ Canceled"))
		return nil
	}

	if spin != nil {
		spin.stopWithSuccess("Done")
	}

	if out != nil {
		n, werr := out.result()
		if werr != nil {
			return fmt.Errorf("failed to write reply: %w", werr)
		}
		if n > 0 && !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(deps.Stdout)
		}
	}

	if opts.copy || s.Config.CopyToClipboard {
		copyToClipboard(deps, text)
	}

	if opts.output != "" {
		if err := writeOutput(opts.output, t); err != nil {
			return err
		}
		fmt.Fprintln(deps.Stderr, successStyle.Render(fmt.Sprintf("✓ Response saved to %s", opts.output)))
		return nil
	}

	if decorated {
		printBubble(deps, s, text)
	}
	return nil
}

// applyPersona sends the instruction of the named persona
func applyPersona(ctx context.Context, client api.ClientInterface, name string, logger *log.Logger) error {
	p, err := loadPersona(name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Instruction) == "" {
		return nil
	}
	if _, err := client.Instruct(ctx, p.Instruction); err != nil {
		return fmt.Errorf("failed to set instruction: %w", err)
	}
	logger.Debug("persona applied", "persona", p.Name)
	return nil
}

// writeOutput saves the reply text, or the whole transcript for .json paths
func writeOutput(path string, t transcript.Transcript) error {
	if transcript.FormatForPath(path) == transcript.ExportFormatJSON {
		return transcript.SaveFile(path, t)
	}
	if err := os.WriteFile(path, []byte(t.LastReply()), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// copyToClipboard copies text and reports the outcome on stderr
func copyToClipboard(deps *Dependencies, text string) {
	if err := deps.Clipboard(text); err != nil {
		fmt.Fprintln(deps.Stderr, warnStyle.Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		return
	}
	fmt.Fprintln(deps.Stderr, successStyle.Render("✓ Copied to clipboard"))
}

// printBubble renders the final answer as markdown inside the assistant bubble
func printBubble(deps *Dependencies, s *Settings, text string) {
	bubbleWidth := min(max(deps.TerminalWidth()-4, 40), 120)
	contentWidth := bubbleWidth - 4

	fmt.Fprintln(deps.Stdout, assistantLabelStyle.Render("✦ "+modelLabel(s.Model)))

	rendered, err := render.Markdown(text, render.OptionsFromConfig(s.Config).WithWidth(contentWidth))
	if err != nil {
		rendered = text
	}
	rendered = strings.TrimRight(rendered, "\n")

	fmt.Fprintln(deps.Stdout, assistantBubbleStyle.Width(bubbleWidth).Render(rendered))
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(colorError)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", context, err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	switch {
	case errors.Is(err, apierrors.ErrNoKey):
		sb.WriteString(dimStyle.Render("\n  Hint: run 'streamchat keygen' or 'streamchat import-key <pem>'"))
	case apierrors.IsAuthError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: check the signing key ('streamchat import-key' or 'streamchat keygen')"))
	case apierrors.IsTimeoutError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: the reply did not finish in time. Raise --timeout or try again"))
	case apierrors.IsNetworkError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: check that the server is running and reachable"))
	}

	return sb.String()
}
