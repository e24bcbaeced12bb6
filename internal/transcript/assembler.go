package transcript

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/log"

	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/stream"
)

// DefaultPath is the endpoint that streams replies to a prompt
const DefaultPath = "/stream"

var (
	errCanceled = errors.New("exchange canceled")
	errDeadline = errors.New("exchange deadline exceeded")
)

// Streamer opens a streaming reply for a prompt posted to path.
type Streamer interface {
	OpenStream(ctx context.Context, path, prompt string) (io.ReadCloser, error)
}

// Snapshot is the state handed to observers after each change.
// Seq increases with every change, so late deliveries can be discarded.
type Snapshot struct {
	Seq        uint64
	Transcript Transcript
	Streaming  bool
}

// Option configures an Assembler
type Option func(*Assembler)

// WithTimeout bounds each exchange. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		a.timeout = d
	}
}

// WithObserver registers fn to be called after every state change.
// fn runs on the goroutine that made the change, outside the lock.
func WithObserver(fn func(Snapshot)) Option {
	return func(a *Assembler) {
		a.observer = fn
	}
}

// WithTrimLeadingSpace strips leading whitespace from the start of each reply.
func WithTrimLeadingSpace(enabled bool) Option {
	return func(a *Assembler) {
		a.trimLeading = enabled
	}
}

// WithLogger sets the logger used for exchange events
func WithLogger(logger *log.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDecoderOptions passes options to every stream decoder
func WithDecoderOptions(opts ...stream.Option) Option {
	return func(a *Assembler) {
		a.decoderOpts = append(a.decoderOpts, opts...)
	}
}

// WithTranscript seeds the assembler with an existing transcript
func WithTranscript(t Transcript) Option {
	return func(a *Assembler) {
		a.transcript = t
	}
}

// exchange is the state of one in-flight send
type exchange struct {
	cancel  context.CancelCauseFunc
	started bool
}

// Assembler owns a transcript and runs one send/receive exchange at a time.
// It is safe for concurrent use: readers may call Transcript and Streaming
// while Send runs, and Cancel may be called from any goroutine.
type Assembler struct {
	streamer    Streamer
	timeout     time.Duration
	observer    func(Snapshot)
	trimLeading bool
	logger      *log.Logger
	decoderOpts []stream.Option

	mu         sync.Mutex
	transcript Transcript
	active     *exchange
	seq        uint64
}

// New creates an Assembler that opens streams through streamer
func New(streamer Streamer, opts ...Option) *Assembler {
	a := &Assembler{
		streamer: streamer,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Transcript returns the current transcript
func (a *Assembler) Transcript() Transcript {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcript
}

// Streaming reports whether an exchange is in flight
func (a *Assembler) Streaming() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

// Snapshot returns the current state
func (a *Assembler) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Send posts text as a prompt and folds the streamed reply into the
// transcript, returning when the exchange ends. Blank input is ignored.
// Send returns apierrors.ErrBusy while another exchange is in flight, nil
// when the exchange is cancelled, and a TimeoutError when the deadline set
// by WithTimeout expires.
func (a *Assembler) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return a.run(ctx, DefaultPath, text, text)
}

// SendCommand streams the reply of a server command. The first word of
// line is the endpoint path (for example "/summarize"); any remaining text
// is sent as the prompt. The command line itself is recorded as the user
// message.
func (a *Assembler) SendCommand(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	path, prompt, _ := strings.Cut(line, " ")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.run(ctx, path, strings.TrimSpace(prompt), line)
}

// Cancel aborts the in-flight exchange. Streaming is inactive when Cancel
// returns and no further fragment of that exchange is folded. It reports
// whether there was an exchange to cancel.
func (a *Assembler) Cancel() bool {
	a.mu.Lock()
	ex := a.active
	if ex == nil {
		a.mu.Unlock()
		return false
	}
	a.active = nil
	snap := a.changedLocked()
	a.mu.Unlock()

	ex.cancel(errCanceled)
	a.logger.Debug("exchange canceled")
	a.notify(snap)
	return true
}

// Reset clears the transcript. It fails with ErrBusy while streaming.
func (a *Assembler) Reset() error {
	a.mu.Lock()
	if a.active != nil {
		a.mu.Unlock()
		return apierrors.ErrBusy
	}
	a.transcript = Transcript{}
	snap := a.changedLocked()
	a.mu.Unlock()

	a.notify(snap)
	return nil
}

func (a *Assembler) run(parent context.Context, path, prompt, display string) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	if a.timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, a.timeout, errDeadline)
		defer stop()
	}

	a.mu.Lock()
	if a.active != nil {
		a.mu.Unlock()
		return apierrors.ErrBusy
	}
	ex := &exchange{cancel: cancel}
	a.active = ex
	a.transcript = a.transcript.Append(UserMessage(display)).Append(AssistantMessage(""))
	snap := a.changedLocked()
	a.mu.Unlock()

	a.notify(snap)
	defer a.finish(ex)

	a.logger.Debug("exchange started", "path", path, "prompt_len", len(prompt))

	body, err := a.streamer.OpenStream(ctx, path, prompt)
	if err != nil {
		return a.classify(ctx, err)
	}

	dec := stream.NewDecoder(ctx, body, a.decoderOpts...)
	defer dec.Close()

	fragments := 0
	for {
		frag, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return a.classify(ctx, err)
		}
		if !a.fold(ex, frag) {
			// canceled between the read and the fold
			return nil
		}
		fragments++
	}

	a.logger.Debug("exchange finished", "path", path, "fragments", fragments)
	return nil
}

// fold appends frag to the tail if ex is still the active exchange.
func (a *Assembler) fold(ex *exchange, frag string) bool {
	a.mu.Lock()
	if a.active != ex {
		a.mu.Unlock()
		return false
	}
	if a.trimLeading && !ex.started {
		frag = strings.TrimLeftFunc(frag, unicode.IsSpace)
		if frag == "" {
			a.mu.Unlock()
			return true
		}
	}
	ex.started = true
	a.transcript = a.transcript.Fold(frag)
	snap := a.changedLocked()
	a.mu.Unlock()

	a.notify(snap)
	return true
}

// finish clears the streaming flag unless Cancel already did.
func (a *Assembler) finish(ex *exchange) {
	a.mu.Lock()
	if a.active != ex {
		a.mu.Unlock()
		return
	}
	a.active = nil
	snap := a.changedLocked()
	a.mu.Unlock()

	a.notify(snap)
}

// classify maps the error that ended an exchange to what Send returns.
func (a *Assembler) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		switch {
		case errors.Is(cause, errDeadline):
			a.logger.Warn("exchange timed out", "after", a.timeout)
			return apierrors.NewTimeoutError("no complete reply before the deadline", a.timeout)
		case errors.Is(cause, context.DeadlineExceeded):
			a.logger.Warn("exchange timed out", "cause", cause)
			return apierrors.NewTimeoutError(cause.Error(), 0)
		default:
			return nil
		}
	}

	a.logger.Error("exchange failed", "err", err)
	return err
}

func (a *Assembler) changedLocked() Snapshot {
	a.seq++
	return a.snapshotLocked()
}

func (a *Assembler) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:        a.seq,
		Transcript: a.transcript,
		Streaming:  a.active != nil,
	}
}

func (a *Assembler) notify(snap Snapshot) {
	if a.observer != nil {
		a.observer(snap)
	}
}
