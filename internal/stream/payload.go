package stream

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Sentinel is the token that marks the end of a reply stream.
const Sentinel = "[DONE]"

// Kind tags the shape of a decoded data payload.
type Kind int

const (
	// KindRaw is a payload that is not a JSON object; its text is passed through.
	KindRaw Kind = iota
	// KindDone is the end-of-stream sentinel, bare or inside the text field.
	KindDone
	// KindText is an object whose text field is a string (or null/missing).
	KindText
	// KindList is an object whose text field is an array.
	KindList
	// KindOther is an object whose text field is a number, bool or object.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindDone:
		return "done"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindOther:
		return "other"
	}
	return "unknown"
}

// Payload is the parsed form of one data line.
type Payload struct {
	Kind  Kind
	Text  string   // KindRaw, KindText, KindOther (JSON text)
	Items []string // KindList
}

// ParsePayload classifies the payload of a data line. It never fails:
// anything that is not a JSON object becomes a KindRaw payload.
func ParsePayload(raw string) Payload {
	if raw == Sentinel {
		return Payload{Kind: KindDone}
	}
	if !gjson.Valid(raw) {
		return Payload{Kind: KindRaw, Text: raw}
	}

	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return Payload{Kind: KindRaw, Text: raw}
	}

	field := doc.Get("text")
	switch {
	case !field.Exists(), field.Type == gjson.Null:
		return Payload{Kind: KindText}
	case field.Type == gjson.String:
		if isSentinel(field.Str) {
			return Payload{Kind: KindDone}
		}
		return Payload{Kind: KindText, Text: field.Str}
	case field.IsArray():
		elems := field.Array()
		if len(elems) == 1 && elems[0].Type == gjson.String && isSentinel(elems[0].Str) {
			return Payload{Kind: KindDone}
		}
		items := make([]string, len(elems))
		for i, e := range elems {
			if e.Type == gjson.String {
				items[i] = e.Str
			} else {
				items[i] = e.Raw
			}
		}
		return Payload{Kind: KindList, Items: items}
	default:
		return Payload{Kind: KindOther, Text: field.Raw}
	}
}

// Normalize returns the fragment text carried by the payload.
// A KindDone payload carries no text.
func (p Payload) Normalize() string {
	switch p.Kind {
	case KindDone:
		return ""
	case KindList:
		return strings.Join(p.Items, "")
	default:
		return p.Text
	}
}

func isSentinel(s string) bool {
	return strings.TrimSpace(s) == Sentinel
}
