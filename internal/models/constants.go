// Package models contains endpoint paths, headers and the model catalogue
// for the streamchat server protocol.
package models

import "strings"

// Endpoint paths, relative to the server URL
const (
	PathStream   = "/stream"
	PathChat     = "/chat"
	PathUpload   = "/upload"
	PathInstruct = "/instruct"
	PathSession  = "/session"

	PathSessionDump    = PathSession + "/dump"
	PathSessionRestore = PathSession + "/restore"
	PathSessionMerge   = PathSession + "/merge"
)

// CommandGetFileTypes is the prompt that asks /chat for the upload extensions
const CommandGetFileTypes = "/getfiletypes"

// Header names used on every request
const (
	HeaderAuthorization = "Authorization"
	HeaderSessionID     = "X-Session-ID"
	HeaderModel         = "X-Model"
)

// SessionAction is one of the server-side session operations
type SessionAction string

const (
	SessionDump    SessionAction = "dump"
	SessionRestore SessionAction = "restore"
	SessionMerge   SessionAction = "merge"
)

// Path returns the endpoint path of the action
func (a SessionAction) Path() string {
	return PathSession + "/" + string(a)
}

// SessionActions lists the valid actions in display order
func SessionActions() []SessionAction {
	return []SessionAction{SessionDump, SessionRestore, SessionMerge}
}

// ParseSessionAction accepts "dump", "/session/dump" and similar forms.
func ParseSessionAction(s string) (SessionAction, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), PathSession+"/")
	for _, a := range SessionActions() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// Model is a model the server can be asked to use through the X-Model header
type Model struct {
	Name        string
	Description string
}

// Available models
var (
	// ModelUnspecified uses the server's default model (no model header sent)
	ModelUnspecified = Model{Name: "unspecified"}

	ModelQwen7B = Model{
		Name:        "qwen2.5-7b-instruct",
		Description: "Qwen2.5 7B instruct, the server default",
	}
	ModelQwen14B = Model{
		Name:        "qwen2.5-14b-instruct",
		Description: "Qwen2.5 14B instruct",
	}
	ModelQwenCoder = Model{
		Name:        "qwen2.5-coder-7b-instruct",
		Description: "Qwen2.5 Coder 7B",
	}
)

// AllModels returns the known models
func AllModels() []Model {
	return []Model{ModelQwen7B, ModelQwen14B, ModelQwenCoder}
}

// ModelFromName returns the known model with name. Unknown non-empty names
// are passed through so servers with other models still work.
func ModelFromName(name string) Model {
	name = strings.TrimSpace(name)
	if name == "" || name == ModelUnspecified.Name {
		return ModelUnspecified
	}
	for _, m := range AllModels() {
		if m.Name == name {
			return m
		}
	}
	return Model{Name: name}
}

// Header returns the header that selects the model, or nil for the server default.
func (m Model) Header() map[string]string {
	if m.Name == "" || m.Name == ModelUnspecified.Name {
		return nil
	}
	return map[string]string{HeaderModel: m.Name}
}

// DefaultHeaders returns the headers sent on every JSON request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "streamchat/1.0",
	}
}

// StreamHeaders returns the headers for a streaming request
func StreamHeaders() map[string]string {
	h := DefaultHeaders()
	h["Accept"] = "text/event-stream"
	h["Cache-Control"] = "no-cache"
	return h
}
