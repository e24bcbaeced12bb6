package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/diogo/streamchat/internal/transcript"
)

// snapshotInterval caps how often streaming snapshots reach the program.
const snapshotInterval = 40 * time.Millisecond

// snapshotMsg carries assembler state into the update loop
type snapshotMsg transcript.Snapshot

// programSink forwards assembler snapshots to a running program.
// While a reply streams, snapshots are rate limited; the ones that end
// or start an exchange always go through, so the final text is never lost.
type programSink struct {
	mu      sync.Mutex
	program *tea.Program
	limiter *rate.Limiter
}

func newProgramSink() *programSink {
	return &programSink{
		limiter: rate.NewLimiter(rate.Every(snapshotInterval), 1),
	}
}

func (s *programSink) attach(p *tea.Program) {
	s.mu.Lock()
	s.program = p
	s.mu.Unlock()
}

// observe is registered as the assembler observer
func (s *programSink) observe(snap transcript.Snapshot) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p == nil {
		return
	}

	if snap.Streaming && !startOfReply(snap) && !s.limiter.Allow() {
		return
	}
	p.Send(snapshotMsg(snap))
}

// startOfReply reports whether the reply being streamed is still empty
func startOfReply(snap transcript.Snapshot) bool {
	last, ok := snap.Transcript.Last()
	return !ok || last.Content == ""
}
