// Package tui provides the terminal user interface for streamchat.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/streamchat/internal/errors"
)

// Palette (tokyonight)
var (
	colorBorder    = lipgloss.Color("#3b4261")
	colorPrimary   = lipgloss.Color("#7aa2f7")
	colorSecondary = lipgloss.Color("#bb9af7")
	colorAccent    = lipgloss.Color("#7dcfff")
	colorError     = lipgloss.Color("#f7768e")
	colorOk        = lipgloss.Color("#9ece6a")

	colorText     = lipgloss.Color("#c0caf5")
	colorTextDim  = lipgloss.Color("#a9b1d6")
	colorTextMute = lipgloss.Color("#565f89")
)

var (
	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2).
			MarginBottom(1)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorTextMute).
			Italic(true)

	messagesAreaStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder).
				Padding(1)

	userBubbleStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorSecondary).
			Padding(0, 1).
			MarginLeft(4)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true).
			MarginLeft(4)

	assistantBubbleStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Foreground(colorText).
				Padding(0, 1).
				MarginRight(4)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	// notices from slash commands (uploads, session actions)
	noticeStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Italic(true).
			MarginLeft(2)

	inputPanelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			MarginTop(1)

	inputLabelStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			MarginRight(1)

	loadingStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorTextMute).
			MarginTop(1)

	statusKeyStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Bold(true)

	statusDescStyle = lipgloss.NewStyle().
			Foreground(colorTextMute)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Align(lipgloss.Center)

	welcomeTitleStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				Align(lipgloss.Center)

	welcomeIconStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Align(lipgloss.Center)

	// Config menu styles
	configHeaderStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				MarginBottom(1).
				Align(lipgloss.Center)

	configTitleStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Bold(true).
				PaddingLeft(1)

	configPanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder).
				Padding(1, 2)

	configSectionTitleStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true)

	configMenuItemStyle = lipgloss.NewStyle().
				Foreground(colorText)

	configMenuSelectedStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	configCursorStyle = lipgloss.NewStyle().
				Foreground(colorAccent)

	configValueStyle = lipgloss.NewStyle().
				Foreground(colorTextDim)

	configEnabledStyle = lipgloss.NewStyle().
				Foreground(colorOk)

	configDisabledStyle = lipgloss.NewStyle().
				Foreground(colorError)

	configPathStyle = lipgloss.NewStyle().
			Foreground(colorTextMute).
			Italic(true)

	configStatusOkStyle = lipgloss.NewStyle().
				Foreground(colorOk)

	configStatusErrorStyle = lipgloss.NewStyle().
				Foreground(colorError)

	configFeedbackStyle = lipgloss.NewStyle().
				Foreground(colorTextDim).
				Italic(true).
				MarginTop(1)

	configStatusBarStyle = lipgloss.NewStyle().
				Foreground(colorTextMute).
				MarginTop(1).
				Align(lipgloss.Center)
)

// FormatError returns a styled error message with a hint for the error kind.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	errStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errStyle.Render(fmt.Sprintf("✗ %v", err)))

	if status := errors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	if hint := errorHint(err); hint != "" {
		sb.WriteString(dimStyle.Render("\n  Hint: " + hint))
	}

	return sb.String()
}

func errorHint(err error) string {
	switch {
	case errors.IsAuthError(err):
		return "check the signing key ('streamchat import-key' or 'streamchat keygen')"
	case errors.IsTimeoutError(err):
		return "the reply did not finish in time. Raise --timeout or try again"
	case errors.IsNetworkError(err):
		return "check that the server is running and reachable"
	}
	return ""
}
