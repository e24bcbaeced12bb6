package transcript

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

type streamCall struct {
	path   string
	prompt string
}

// fakeStreamer hands out bodies built by open and records every call.
type fakeStreamer struct {
	open func(ctx context.Context) (io.ReadCloser, error)

	mu    sync.Mutex
	calls []streamCall
}

func (f *fakeStreamer) OpenStream(ctx context.Context, path, prompt string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls = append(f.calls, streamCall{path: path, prompt: prompt})
	f.mu.Unlock()
	return f.open(ctx)
}

func (f *fakeStreamer) lastCall() streamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func staticStreamer(wire string) *fakeStreamer {
	return &fakeStreamer{open: func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(wire)), nil
	}}
}

// pipeStreamer returns a body fed through w by the test.
func pipeStreamer() (*fakeStreamer, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return &fakeStreamer{open: func(context.Context) (io.ReadCloser, error) {
		return pr, nil
	}}, pw
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func frame(text string) string {
	return "data: {\"text\":\"" + text + "\"}\n\n"
}

func TestAssembler_SendFoldsReply(t *testing.T) {
	streamer := staticStreamer(frame("Hel") + frame("lo") + "data: [DONE]\n\n")
	a := New(streamer)

	if err := a.Send(context.Background(), "Say hello"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	tr := a.Transcript()
	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
	if tr.At(0) != UserMessage("Say hello") {
		t.Errorf("user message = %+v", tr.At(0))
	}
	if tr.At(1) != AssistantMessage("Hello") {
		t.Errorf("assistant message = %+v", tr.At(1))
	}
	if a.Streaming() {
		t.Error("Streaming() should be false after Send returns")
	}

	call := streamer.lastCall()
	if call.path != DefaultPath || call.prompt != "Say hello" {
		t.Errorf("OpenStream(%q, %q), want (%q, %q)", call.path, call.prompt, DefaultPath, "Say hello")
	}
}

func TestAssembler_SecondSendKeepsHistory(t *testing.T) {
	a := New(staticStreamer(frame("ok")))

	for _, prompt := range []string{"one", "two"} {
		if err := a.Send(context.Background(), prompt); err != nil {
			t.Fatalf("Send(%q) error: %v", prompt, err)
		}
	}

	tr := a.Transcript()
	if tr.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", tr.Len())
	}
	if tr.At(2).Content != "two" || tr.At(3).Content != "ok" {
		t.Errorf("second exchange = %+v", tr.Messages()[2:])
	}
}

func TestAssembler_BlankInputIsNoOp(t *testing.T) {
	streamer := staticStreamer(frame("x"))
	var notified int
	a := New(streamer, WithObserver(func(Snapshot) { notified++ }))

	for _, in := range []string{"", "   ", "\t\n"} {
		if err := a.Send(context.Background(), in); err != nil {
			t.Errorf("Send(%q) error: %v", in, err)
		}
	}

	if a.Transcript().Len() != 0 {
		t.Errorf("transcript changed: %+v", a.Transcript().Messages())
	}
	if a.Streaming() {
		t.Error("Streaming() changed")
	}
	if len(streamer.calls) != 0 || notified != 0 {
		t.Errorf("blank input reached the streamer (%d calls) or observer (%d)", len(streamer.calls), notified)
	}
}

func TestAssembler_ObserverSeesEveryChange(t *testing.T) {
	var mu sync.Mutex
	var snaps []Snapshot
	a := New(staticStreamer(frame("a")+frame("b")), WithObserver(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}))

	if err := a.Send(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	// start, two folds, finish
	if len(snaps) != 4 {
		t.Fatalf("got %d snapshots, want 4", len(snaps))
	}
	if !snaps[0].Streaming || snaps[0].Transcript.Len() != 2 {
		t.Errorf("first snapshot = %+v", snaps[0])
	}
	if got := snaps[2].Transcript.LastReply(); got != "ab" {
		t.Errorf("after second fold reply = %q", got)
	}
	if snaps[3].Streaming {
		t.Error("last snapshot should not be streaming")
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Seq <= snaps[i-1].Seq {
			t.Errorf("Seq not increasing at %d: %d <= %d", i, snaps[i].Seq, snaps[i-1].Seq)
		}
	}
	// earlier snapshots are not affected by later folds
	if got := snaps[1].Transcript.LastReply(); got != "a" {
		t.Errorf("first fold snapshot reply = %q, want \"a\"", got)
	}
}

func TestAssembler_BusyWhileStreaming(t *testing.T) {
	streamer, pw := pipeStreamer()
	defer pw.Close()
	a := New(streamer)

	done := make(chan error, 1)
	go func() { done <- a.Send(context.Background(), "first") }()
	waitFor(t, "streaming", a.Streaming)

	if err := a.Send(context.Background(), "second"); !errors.Is(err, apierrors.ErrBusy) {
		t.Errorf("concurrent Send() error = %v, want ErrBusy", err)
	}
	if err := a.Reset(); !errors.Is(err, apierrors.ErrBusy) {
		t.Errorf("Reset() while streaming = %v, want ErrBusy", err)
	}
	if a.Transcript().Len() != 2 {
		t.Errorf("rejected send changed the transcript: %+v", a.Transcript().Messages())
	}

	a.Cancel()
	if err := <-done; err != nil {
		t.Errorf("cancelled Send() error = %v, want nil", err)
	}
}

func TestAssembler_CancelMidStream(t *testing.T) {
	streamer, pw := pipeStreamer()
	a := New(streamer)

	done := make(chan error, 1)
	go func() { done <- a.Send(context.Background(), "tell me") }()

	if _, err := io.WriteString(pw, frame("partial")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first fragment", func() bool { return a.Transcript().LastReply() == "partial" })

	if !a.Cancel() {
		t.Fatal("Cancel() = false, want true")
	}
	if a.Streaming() {
		t.Error("Streaming() should be false as soon as Cancel returns")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Send() error = %v, want nil for a cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send() did not return after Cancel")
	}

	// the body is closed; nothing more can arrive
	_, _ = io.WriteString(pw, frame(" more"))
	if got := a.Transcript().LastReply(); got != "partial" {
		t.Errorf("reply after cancel = %q, want \"partial\"", got)
	}
	if a.Cancel() {
		t.Error("second Cancel() should report nothing to cancel")
	}
}

func TestAssembler_CancelWithoutExchange(t *testing.T) {
	a := New(staticStreamer(""))
	if a.Cancel() {
		t.Error("Cancel() with nothing in flight should return false")
	}
}

func TestAssembler_ParentContextCancelIsNotAnError(t *testing.T) {
	streamer, pw := pipeStreamer()
	defer pw.Close()
	a := New(streamer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Send(ctx, "q") }()
	waitFor(t, "streaming", a.Streaming)

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Send() error = %v, want nil", err)
	}
	if a.Streaming() {
		t.Error("Streaming() should be false")
	}
}

func TestAssembler_Timeout(t *testing.T) {
	streamer, pw := pipeStreamer()
	defer pw.Close()
	a := New(streamer, WithTimeout(20*time.Millisecond))

	err := a.Send(context.Background(), "slow")
	if !apierrors.IsTimeoutError(err) {
		t.Fatalf("Send() error = %v, want TimeoutError", err)
	}
	var te *apierrors.TimeoutError
	if !errors.As(err, &te) || te.After != 20*time.Millisecond {
		t.Errorf("TimeoutError = %+v", te)
	}
	if a.Streaming() {
		t.Error("Streaming() should be false after a timeout")
	}
}

func TestAssembler_OpenErrorClearsStreaming(t *testing.T) {
	apiErr := apierrors.NewAPIError(500, "/stream", "stream request failed")
	a := New(&fakeStreamer{open: func(context.Context) (io.ReadCloser, error) {
		return nil, apiErr
	}})

	err := a.Send(context.Background(), "q")
	if !errors.Is(err, apiErr) {
		t.Fatalf("Send() error = %v, want the API error", err)
	}
	if a.Streaming() {
		t.Error("Streaming() should be false after a transport error")
	}
	if tr := a.Transcript(); tr.Len() != 2 || tr.At(1) != AssistantMessage("") {
		t.Errorf("transcript = %+v", tr.Messages())
	}

	// a failed send does not block the next one
	a.streamer = staticStreamer(frame("retry ok"))
	if err := a.Send(context.Background(), "again"); err != nil {
		t.Fatalf("retry Send() error: %v", err)
	}
	if got := a.Transcript().LastReply(); got != "retry ok" {
		t.Errorf("reply = %q", got)
	}
}

func TestAssembler_ReadErrorIsSurfaced(t *testing.T) {
	a := New(&fakeStreamer{open: func(context.Context) (io.ReadCloser, error) {
		r := io.MultiReader(strings.NewReader(frame("half")), failingReader{err: errors.New("connection reset")})
		return io.NopCloser(r), nil
	}})

	err := a.Send(context.Background(), "q")
	if !apierrors.IsNetworkError(err) {
		t.Fatalf("Send() error = %v, want NetworkError", err)
	}
	if got := a.Transcript().LastReply(); got != "half" {
		t.Errorf("reply = %q, want the fragment received before the failure", got)
	}
	if a.Streaming() {
		t.Error("Streaming() should be false")
	}
}

func TestAssembler_MalformedFrameIsText(t *testing.T) {
	a := New(staticStreamer("data: not-json\n\n" + frame("!")))

	if err := a.Send(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if got := a.Transcript().LastReply(); got != "not-json!" {
		t.Errorf("reply = %q", got)
	}
}

func TestAssembler_SendCommand(t *testing.T) {
	tests := []struct {
		line       string
		wantPath   string
		wantPrompt string
	}{
		{"/summarize", "/summarize", ""},
		{"  /translate to french  ", "/translate", "to french"},
		{"stats", "/stats", ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			streamer := staticStreamer(frame("done"))
			a := New(streamer)

			if err := a.SendCommand(context.Background(), tt.line); err != nil {
				t.Fatalf("SendCommand() error: %v", err)
			}
			call := streamer.lastCall()
			if call.path != tt.wantPath || call.prompt != tt.wantPrompt {
				t.Errorf("OpenStream(%q, %q), want (%q, %q)", call.path, call.prompt, tt.wantPath, tt.wantPrompt)
			}
			if got := a.Transcript().At(0).Content; got != strings.TrimSpace(tt.line) {
				t.Errorf("user message = %q", got)
			}
		})
	}
}

func TestAssembler_TrimLeadingSpace(t *testing.T) {
	wire := frame("  ") + frame("\\n  Hi") + frame(" there")

	trimmed := New(staticStreamer(wire), WithTrimLeadingSpace(true))
	if err := trimmed.Send(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if got := trimmed.Transcript().LastReply(); got != "Hi there" {
		t.Errorf("trimmed reply = %q, want \"Hi there\"", got)
	}

	plain := New(staticStreamer(wire))
	if err := plain.Send(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if got := plain.Transcript().LastReply(); got != "  \n  Hi there" {
		t.Errorf("untrimmed reply = %q", got)
	}
}

func TestAssembler_Reset(t *testing.T) {
	a := New(staticStreamer(frame("a")), WithTranscript(Of(UserMessage("old"), AssistantMessage("reply"))))

	if a.Transcript().Len() != 2 {
		t.Fatalf("seeded transcript length = %d", a.Transcript().Len())
	}
	if err := a.Reset(); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if a.Transcript().Len() != 0 {
		t.Errorf("Reset() left %d messages", a.Transcript().Len())
	}
}
