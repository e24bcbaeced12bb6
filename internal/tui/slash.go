package tui

import (
	"strings"

	"github.com/diogo/streamchat/internal/models"
)

type slashKind int

const (
	slashNone slashKind = iota // plain prompt
	slashQuit
	slashClear
	slashSave
	slashUpload
	slashInstruct
	slashSession
	slashServer // anything else starting with "/" is streamed from the server
)

// slashCommand is a parsed line of input
type slashCommand struct {
	kind   slashKind
	arg    string
	action models.SessionAction
	line   string
}

// parseInput classifies a trimmed input line
func parseInput(input string) slashCommand {
	input = strings.TrimSpace(input)
	cmd := slashCommand{line: input}

	switch input {
	case "exit", "quit":
		cmd.kind = slashQuit
		return cmd
	}
	if !strings.HasPrefix(input, "/") {
		cmd.kind = slashNone
		return cmd
	}

	name, arg, _ := strings.Cut(input, " ")
	cmd.arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		cmd.kind = slashQuit
	case "/clear":
		cmd.kind = slashClear
	case "/save":
		cmd.kind = slashSave
	case "/upload":
		cmd.kind = slashUpload
	case "/instruct":
		cmd.kind = slashInstruct
	default:
		if action, ok := models.ParseSessionAction(name); ok && strings.HasPrefix(name, models.PathSession+"/") {
			cmd.kind = slashSession
			cmd.action = action
			return cmd
		}
		cmd.kind = slashServer
	}
	return cmd
}

// usage is shown when a command that needs an argument has none
func (c slashCommand) usage() string {
	switch c.kind {
	case slashSave:
		return "usage: /save <file.md|file.json>"
	case slashUpload:
		return "usage: /upload <path>"
	case slashInstruct:
		return "usage: /instruct <text>"
	}
	return ""
}

// needsArg reports whether c is missing a required argument
func (c slashCommand) needsArg() bool {
	return c.usage() != "" && c.arg == ""
}
