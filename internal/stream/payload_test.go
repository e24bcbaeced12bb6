package stream

import "testing"

func TestParsePayload(t *testing.T) {
	tests := []struct {
		raw      string
		kind     Kind
		fragment string
	}{
		{"[DONE]", KindDone, ""},
		{`{"text":"[DONE]"}`, KindDone, ""},
		{`{"text":" [DONE] "}`, KindDone, ""},
		{`{"text":["[DONE]"]}`, KindDone, ""},
		{`{"text":"hi"}`, KindText, "hi"},
		{`{"text":null}`, KindText, ""},
		{`{}`, KindText, ""},
		{`{"text":["a","b"]}`, KindList, "ab"},
		{`{"text":["a",1,null]}`, KindList, "a1null"},
		{`{"text":[]}`, KindList, ""},
		{`{"text":3.5}`, KindOther, "3.5"},
		{`{"text":{"k":"v"}}`, KindOther, `{"k":"v"}`},
		{`not-json`, KindRaw, "not-json"},
		{`[DONE`, KindRaw, "[DONE"},
		{`123`, KindRaw, "123"},
		{``, KindRaw, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p := ParsePayload(tt.raw)
			if p.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", p.Kind, tt.kind)
			}
			if got := p.Normalize(); got != tt.fragment {
				t.Errorf("Normalize() = %q, want %q", got, tt.fragment)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		KindRaw: "raw", KindDone: "done", KindText: "text", KindList: "list", KindOther: "other", Kind(99): "unknown",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
