// Package api provides the HTTP client for the streamchat server.
package api

// GJSON paths for values read from JSON replies
const (
	// PathMessage is the human-readable result of /instruct and /session/*
	PathMessage = "message"
	// PathDetail carries the reason of an error response
	PathDetail = "detail"
	// PathError is the alternative error field some servers use
	PathError = "error"
)
