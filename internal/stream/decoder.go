// Package stream decodes a blank-line framed event stream into text fragments.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"unicode/utf8"

	apierrors "github.com/diogo/streamchat/internal/errors"
)

const (
	// DefaultMaxFrameSize bounds the bytes buffered while waiting for a delimiter.
	DefaultMaxFrameSize = 4 << 20
	defaultReadSize     = 32 << 10

	dataPrefix = "data:"
)

var frameDelimiter = []byte("\n\n")

// Option configures a Decoder
type Option func(*Decoder)

// WithMaxFrameSize sets the largest incomplete frame the decoder will buffer.
func WithMaxFrameSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFrame = n
		}
	}
}

// WithReadSize sets the size of each read from the body.
func WithReadSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.readSize = n
		}
	}
}

// Decoder turns a response body into a lazy, finite sequence of fragments.
// It is not safe for concurrent use; cancel a blocked Next through its context.
type Decoder struct {
	ctx  context.Context
	body io.ReadCloser

	maxFrame int
	readSize int
	readBuf  []byte

	// carry holds the bytes of a rune split across reads.
	carry []byte
	// heldCR is set when the last decoded byte was a CR that may start a CRLF.
	heldCR bool
	buf    []byte
	queue  []string

	done bool
	err  error

	closeOnce sync.Once
	closeErr  error
	stop      func() bool
}

// NewDecoder returns a decoder reading from body. When ctx is done the body
// is closed, which unblocks a pending read; Next then returns context.Cause(ctx).
func NewDecoder(ctx context.Context, body io.ReadCloser, opts ...Option) *Decoder {
	d := &Decoder{
		ctx:      ctx,
		body:     body,
		maxFrame: DefaultMaxFrameSize,
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.readBuf = make([]byte, d.readSize)
	d.stop = context.AfterFunc(ctx, func() { _ = d.closeBody() })
	return d
}

// Next returns the next fragment. It returns io.EOF once the stream has
// ended, by sentinel or end of body, and a terminal error for read failures
// and cancellation. Fragments decoded before an error are returned first.
func (d *Decoder) Next() (string, error) {
	for {
		if len(d.queue) > 0 {
			frag := d.queue[0]
			d.queue = d.queue[1:]
			return frag, nil
		}
		if d.done {
			return "", d.err
		}
		if err := d.ctx.Err(); err != nil {
			d.finish(context.Cause(d.ctx))
			continue
		}

		if idx := bytes.Index(d.buf, frameDelimiter); idx >= 0 {
			frame := string(d.buf[:idx])
			d.buf = d.buf[idx+len(frameDelimiter):]
			d.processFrame(frame)
			continue
		}
		if len(d.buf) > d.maxFrame {
			d.finish(apierrors.ErrFrameTooLarge)
			continue
		}

		d.read()
	}
}

// All returns an iterator over the remaining fragments. Iteration stops
// after the first error, which is yielded with an empty fragment.
// Breaking out of the loop closes the decoder.
func (d *Decoder) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			frag, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(frag, nil) {
				_ = d.Close()
				return
			}
		}
	}
}

// Close releases the body. Subsequent calls to Next return io.EOF
// unless the stream already ended with an error.
func (d *Decoder) Close() error {
	if !d.done {
		d.done = true
		d.err = io.EOF
		d.buf = nil
	}
	d.stop()
	return d.closeBody()
}

// closeBody may run on the context's AfterFunc goroutine.
func (d *Decoder) closeBody() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.body.Close()
	})
	return d.closeErr
}

func (d *Decoder) read() {
	n, err := d.body.Read(d.readBuf)
	if n > 0 {
		d.feed(d.readBuf[:n])
	}
	if err == nil {
		return
	}

	if ctxErr := d.ctx.Err(); ctxErr != nil {
		d.finish(context.Cause(d.ctx))
		return
	}
	if errors.Is(err, io.EOF) {
		d.flush()
		return
	}
	// complete frames that arrived with the failing read still count
	d.drainFrames()
	d.finish(apierrors.NewNetworkError("read stream", err))
}

// feed decodes p onto the text buffer, keeping an incomplete trailing rune
// and a trailing CR for the next read.
func (d *Decoder) feed(p []byte) {
	data := p
	if len(d.carry) > 0 {
		data = append(d.carry, p...)
		d.carry = nil
	}

	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(data) {
		d.carry = append([]byte(nil), data[cut:]...)
	}

	d.appendText(strings.ToValidUTF8(string(data[:cut]), string(utf8.RuneError)))
}

func (d *Decoder) appendText(text string) {
	if d.heldCR {
		text = "\r" + text
		d.heldCR = false
	}
	if strings.HasSuffix(text, "\r") {
		text = text[:len(text)-1]
		d.heldCR = true
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	d.buf = append(d.buf, text...)
}

// flush handles end of body: leftover bytes are decoded and a non-blank
// remainder is processed as a final frame.
func (d *Decoder) flush() {
	if len(d.carry) > 0 {
		tail := strings.ToValidUTF8(string(d.carry), string(utf8.RuneError))
		d.carry = nil
		d.appendText(tail)
	}
	if d.heldCR {
		d.heldCR = false
		d.buf = append(d.buf, '\n')
	}

	d.drainFrames()
	if !d.done && len(bytes.TrimSpace(d.buf)) > 0 {
		d.processFrame(string(d.buf))
	}
	d.finish(io.EOF)
}

func (d *Decoder) drainFrames() {
	for !d.done {
		idx := bytes.Index(d.buf, frameDelimiter)
		if idx < 0 {
			return
		}
		frame := string(d.buf[:idx])
		d.buf = d.buf[idx+len(frameDelimiter):]
		d.processFrame(frame)
	}
}

// processFrame queues the fragments of one frame, or finishes the
// stream when it meets the sentinel.
func (d *Decoder) processFrame(frame string) {
	for line := range strings.SplitSeq(frame, "\n") {
		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok {
			continue
		}
		p := ParsePayload(strings.TrimSpace(payload))
		if p.Kind == KindDone {
			d.finish(io.EOF)
			return
		}
		d.queue = append(d.queue, p.Normalize())
	}
}

func (d *Decoder) finish(err error) {
	if d.done {
		return
	}
	d.done = true
	d.err = err
	d.buf = nil
	d.carry = nil
	d.stop()
	_ = d.closeBody()
}
