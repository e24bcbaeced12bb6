// Package transcript holds the conversation state and folds streamed
// fragments into it.
package transcript

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a transcript. Values are never modified once
// they are part of a Transcript; folding replaces the tail with a new value.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a message authored by the user
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns a message authored by the assistant
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
