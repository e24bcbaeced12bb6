package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	apierrors "github.com/diogo/streamchat/internal/errors"
)

// chunkBody returns its chunks one Read at a time and records Close.
type chunkBody struct {
	chunks [][]byte
	err    error // returned once chunks are exhausted, io.EOF when nil

	mu     sync.Mutex
	closed bool
}

func newChunkBody(chunks ...string) *chunkBody {
	b := &chunkBody{}
	for _, c := range chunks {
		b.chunks = append(b.chunks, []byte(c))
	}
	return b
}

func (b *chunkBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errors.New("read on closed body")
	}
	if len(b.chunks) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	if n < len(b.chunks[0]) {
		b.chunks[0] = b.chunks[0][n:]
	} else {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

func (b *chunkBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *chunkBody) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// blockingBody serves its prefix, then blocks until closed.
type blockingBody struct {
	prefix  []byte
	closeCh chan struct{}
	once    sync.Once
}

func newBlockingBody(prefix string) *blockingBody {
	return &blockingBody{prefix: []byte(prefix), closeCh: make(chan struct{})}
}

func (b *blockingBody) Read(p []byte) (int, error) {
	if len(b.prefix) > 0 {
		n := copy(p, b.prefix)
		b.prefix = b.prefix[n:]
		return n, nil
	}
	<-b.closeCh
	return 0, errors.New("use of closed network connection")
}

func (b *blockingBody) Close() error {
	b.once.Do(func() { close(b.closeCh) })
	return nil
}

func collect(t *testing.T, d *Decoder) ([]string, error) {
	t.Helper()
	var frags []string
	for {
		frag, err := d.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frags, nil
			}
			return frags, err
		}
		frags = append(frags, frag)
	}
}

func equalFragments(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDecoder_Fragments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "text fragments then sentinel",
			input: "data: {\"text\":\"Hel\"}\n\ndata: {\"text\":\"lo\"}\n\ndata: [DONE]\n\n",
			want:  []string{"Hel", "lo"},
		},
		{
			name:  "sentinel first",
			input: "data: [DONE]\n\n",
			want:  nil,
		},
		{
			name:  "malformed payload passes through",
			input: "data: not-json\n\n",
			want:  []string{"not-json"},
		},
		{
			name:  "array is concatenated",
			input: "data: {\"text\":[\"a\",\"b\",\"c\"]}\n\n",
			want:  []string{"abc"},
		},
		{
			name:  "sentinel inside text field",
			input: "data: {\"text\":\"x\"}\n\ndata: {\"text\":\"[DONE]\"}\n\ndata: {\"text\":\"never\"}\n\n",
			want:  []string{"x"},
		},
		{
			name:  "single element array sentinel",
			input: "data: {\"text\":[\"[DONE]\"]}\n\ndata: {\"text\":\"never\"}\n\n",
			want:  nil,
		},
		{
			name:  "array holding sentinel and more is text",
			input: "data: {\"text\":[\"[DONE]\",\"!\"]}\n\n",
			want:  []string{"[DONE]!"},
		},
		{
			name:  "empty fragment is emitted",
			input: "data: {\"text\":\"\"}\n\ndata: {\"text\":\"a\"}\n\n",
			want:  []string{"", "a"},
		},
		{
			name:  "null and missing text are empty",
			input: "data: {\"text\":null}\n\ndata: {\"other\":1}\n\n",
			want:  []string{"", ""},
		},
		{
			name:  "non string scalar is coerced",
			input: "data: {\"text\":42}\n\ndata: {\"text\":true}\n\n",
			want:  []string{"42", "true"},
		},
		{
			name:  "non object json passes through",
			input: "data: [1,2]\n\ndata: \"quoted\"\n\n",
			want:  []string{"[1,2]", "\"quoted\""},
		},
		{
			name:  "non data lines are ignored",
			input: "event: message\nid: 7\ndata: {\"text\":\"a\"}\n: comment\n\n",
			want:  []string{"a"},
		},
		{
			name:  "multiple data lines in a frame",
			input: "data: {\"text\":\"a\"}\ndata: {\"text\":\"b\"}\n\n",
			want:  []string{"a", "b"},
		},
		{
			name:  "sentinel mid frame drops the rest",
			input: "data: {\"text\":\"a\"}\ndata: [DONE]\ndata: {\"text\":\"b\"}\n\n",
			want:  []string{"a"},
		},
		{
			name:  "crlf delimiters",
			input: "data: {\"text\":\"a\"}\r\n\r\ndata: {\"text\":\"b\"}\r\n\r\ndata: [DONE]\r\n\r\n",
			want:  []string{"a", "b"},
		},
		{
			name:  "payload whitespace is stripped",
			input: "data:    {\"text\":\" keep \"}   \n\n",
			want:  []string{" keep "},
		},
		{
			name:  "prefix without space",
			input: "data:{\"text\":\"tight\"}\n\n",
			want:  []string{"tight"},
		},
		{
			name:  "unterminated final frame",
			input: "data: {\"text\":\"a\"}\n\ndata: {\"text\":\"tail\"}",
			want:  []string{"a", "tail"},
		},
		{
			name:  "blank remainder is ignored",
			input: "data: {\"text\":\"a\"}\n\n\n",
			want:  []string{"a"},
		},
		{
			name:  "escaped newlines in text",
			input: "data: {\"text\":\"line1\\nline2\"}\n\n",
			want:  []string{"line1\nline2"},
		},
		{
			name:  "empty body",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(context.Background(), newChunkBody(tt.input))
			got, err := collect(t, d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !equalFragments(got, tt.want) {
				t.Errorf("fragments = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecoder_ByteAtATime(t *testing.T) {
	input := "data: {\"text\":\"héllo \"}\r\n\r\ndata: {\"text\":[\"wör\",\"ld 🌍\"]}\r\n\r\ndata: [DONE]\r\n\r\n"
	var chunks []string
	for i := 0; i < len(input); i++ {
		chunks = append(chunks, input[i:i+1])
	}

	d := NewDecoder(context.Background(), newChunkBody(chunks...))
	got, err := collect(t, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"héllo ", "wörld 🌍"}
	if !equalFragments(got, want) {
		t.Errorf("fragments = %q, want %q", got, want)
	}
}

func TestDecoder_MultiByteSplitAcrossReads(t *testing.T) {
	// "€" is E2 82 AC; split it after the first byte and after the second.
	euro := "€"
	for split := 1; split < len(euro); split++ {
		first := "data: {\"text\":\"" + euro[:split]
		second := euro[split:] + "\"}\n\n"

		d := NewDecoder(context.Background(), newChunkBody(first, second))
		got, err := collect(t, d)
		if err != nil {
			t.Fatalf("split %d: unexpected error: %v", split, err)
		}
		if len(got) != 1 || got[0] != euro {
			t.Errorf("split %d: fragments = %q, want [%q]", split, got, euro)
		}
	}
}

func TestDecoder_InvalidBytesAreReplaced(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkBody("data: a\xffb\n\n"))
	got, err := collect(t, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "a�b" {
		t.Errorf("fragments = %q, want [\"a\\uFFFDb\"]", got)
	}
}

func TestDecoder_TruncatedRuneAtEOF(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkBody("data: ok\xe2\x82"))
	got, err := collect(t, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || !strings.HasPrefix(got[0], "ok") || !strings.Contains(got[0], "�") {
		t.Errorf("fragments = %q, want ok followed by a replacement character", got)
	}
}

func TestDecoder_CRLFSplitAcrossReads(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkBody("data: {\"text\":\"a\"}\r", "\n\r", "\ndata: [DONE]\r\n\r\n"))
	got, err := collect(t, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalFragments(got, []string{"a"}) {
		t.Errorf("fragments = %q, want [\"a\"]", got)
	}
}

func TestDecoder_SentinelClosesBody(t *testing.T) {
	body := newChunkBody("data: {\"text\":\"a\"}\n\ndata: [DONE]\n\ndata: {\"text\":\"after\"}\n\n")
	d := NewDecoder(context.Background(), body)

	got, err := collect(t, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalFragments(got, []string{"a"}) {
		t.Errorf("fragments = %q, want [\"a\"]", got)
	}
	if !body.isClosed() {
		t.Error("body should be closed after the sentinel")
	}

	// the sequence does not restart
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
}

func TestDecoder_ReadErrorIsTerminal(t *testing.T) {
	body := newChunkBody("data: {\"text\":\"a\"}\n\n")
	body.err = errors.New("connection reset by peer")

	d := NewDecoder(context.Background(), body)
	got, err := collect(t, d)

	if !equalFragments(got, []string{"a"}) {
		t.Errorf("fragments = %q, want [\"a\"] before the error", got)
	}
	if !apierrors.IsNetworkError(err) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
	if !body.isClosed() {
		t.Error("body should be closed after a read error")
	}
}

func TestDecoder_FrameTooLarge(t *testing.T) {
	big := "data: " + strings.Repeat("x", 128)
	d := NewDecoder(context.Background(), newChunkBody(big, big), WithMaxFrameSize(64), WithReadSize(16))

	_, err := collect(t, d)
	if !errors.Is(err, apierrors.ErrFrameTooLarge) {
		t.Errorf("error = %v, want ErrFrameTooLarge", err)
	}
}

func TestDecoder_CancelUnblocksRead(t *testing.T) {
	body := newBlockingBody("data: {\"text\":\"first\"}\n\n")
	ctx, cancel := context.WithCancelCause(context.Background())
	stopped := errors.New("stopped by user")

	d := NewDecoder(ctx, body)
	frag, err := d.Next()
	if err != nil || frag != "first" {
		t.Fatalf("Next() = %q, %v; want \"first\", nil", frag, err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := d.Next()
		result <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel(stopped)

	select {
	case err := <-result:
		if !errors.Is(err, stopped) {
			t.Errorf("Next() error = %v, want the cancel cause", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next() did not return after cancellation")
	}
}

func TestDecoder_CancelledBeforeRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := newChunkBody("data: {\"text\":\"a\"}\n\n")
	d := NewDecoder(ctx, body)

	if _, err := d.Next(); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
	if !body.isClosed() {
		t.Error("body should be closed when the context is done")
	}
}

func TestDecoder_All(t *testing.T) {
	d := NewDecoder(context.Background(), newChunkBody("data: a\n\ndata: b\n\ndata: c\n\n"))

	var got []string
	for frag, err := range d.All() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, frag)
	}
	if !equalFragments(got, []string{"a", "b", "c"}) {
		t.Errorf("fragments = %q", got)
	}
}

func TestDecoder_AllBreakClosesBody(t *testing.T) {
	body := newChunkBody("data: a\n\ndata: b\n\n")
	d := NewDecoder(context.Background(), body)

	for range d.All() {
		break
	}
	if !body.isClosed() {
		t.Error("breaking out of All should close the body")
	}
}

func TestDecoder_CloseIsIdempotent(t *testing.T) {
	body := newChunkBody("data: a\n\n")
	d := NewDecoder(context.Background(), body)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after Close = %v, want io.EOF", err)
	}
}
