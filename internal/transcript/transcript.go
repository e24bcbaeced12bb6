package transcript

import "iter"

// Transcript is an immutable, ordered sequence of messages. Every change
// returns a new Transcript; a value handed to a reader never changes.
type Transcript struct {
	msgs []Message
}

// Of returns a transcript holding a copy of msgs
func Of(msgs ...Message) Transcript {
	return Transcript{msgs: append([]Message(nil), msgs...)}
}

// Len returns the number of messages
func (t Transcript) Len() int {
	return len(t.msgs)
}

// At returns the message at index i
func (t Transcript) At(i int) Message {
	return t.msgs[i]
}

// Last returns the final message, if any
func (t Transcript) Last() (Message, bool) {
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}

// Messages returns a copy of the messages
func (t Transcript) Messages() []Message {
	return append([]Message(nil), t.msgs...)
}

// All iterates over the messages in order
func (t Transcript) All() iter.Seq2[int, Message] {
	return func(yield func(int, Message) bool) {
		for i, m := range t.msgs {
			if !yield(i, m) {
				return
			}
		}
	}
}

// LastReply returns the content of the last assistant message
func (t Transcript) LastReply() string {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Role == RoleAssistant {
			return t.msgs[i].Content
		}
	}
	return ""
}

// Append returns a transcript with m added at the end.
func (t Transcript) Append(m Message) Transcript {
	n := len(t.msgs)
	// the full slice expression forces a copy, so t keeps its own view
	return Transcript{msgs: append(t.msgs[:n:n], m)}
}

// Fold returns a transcript with fragment appended to the tail message.
// An empty transcript is returned unchanged. When the tail is not an
// assistant message, a new assistant message holding fragment is appended.
func (t Transcript) Fold(fragment string) Transcript {
	last, ok := t.Last()
	if !ok {
		return t
	}
	if last.Role != RoleAssistant {
		return t.Append(AssistantMessage(fragment))
	}

	n := len(t.msgs) - 1
	return Transcript{msgs: append(t.msgs[:n:n], AssistantMessage(last.Content+fragment))}
}
