package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/diogo/streamchat/internal/api"
	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/render"
	"github.com/diogo/streamchat/internal/transcript"
)

// Animation tick message
type animationTickMsg time.Time

// Message types for the TUI
type (
	// exchangeDoneMsg is sent when a Send or SendCommand returns
	exchangeDoneMsg struct {
		err error
	}
	// noticeMsg reports the result of a non-streaming command
	noticeMsg struct {
		text string
		err  error
	}
)

// ChatConfig holds what the chat TUI needs from the command layer
type ChatConfig struct {
	Client           api.ClientInterface
	ModelName        string
	Render           render.Options
	Timeout          time.Duration
	TrimLeadingSpace bool
	Logger           *log.Logger
	// Persona, when set, has its instruction sent before the first prompt
	Persona *config.Persona
}

// Model represents the TUI state
type Model struct {
	ctx        context.Context
	client     api.ClientInterface
	asm        *transcript.Assembler
	modelName  string
	persona    *config.Persona
	renderOpts render.Options
	clipboard  func(string) error

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	snap           transcript.Snapshot
	pending        bool // a non-streaming command is running
	notice         string
	ready          bool
	err            error
	animationFrame int

	// Dimensions
	width  int
	height int
}

// NewChatModel creates a chat model over an assembler. The assembler's
// observer should deliver snapshots to the program (see RunChat).
func NewChatModel(ctx context.Context, cfg ChatConfig, asm *transcript.Assembler) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message, or /exit to quit..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	return Model{
		ctx:        ctx,
		client:     cfg.Client,
		asm:        asm,
		modelName:  cfg.ModelName,
		persona:    cfg.Persona,
		renderOpts: cfg.Render,
		clipboard:  clipboard.WriteAll,
		pending:    persona(cfg) != "",
		textarea:   ta,
		spinner:    s,
		snap:       asm.Snapshot(),
	}
}

// persona returns the instruction to send on start, if any
func persona(cfg ChatConfig) string {
	if cfg.Persona == nil {
		return ""
	}
	return strings.TrimSpace(cfg.Persona.Instruction)
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick}
	if m.pending {
		cmds = append(cmds, m.instruct(m.persona.Instruction), animationTick())
	}
	return tea.Batch(cmds...)
}

// animationTick returns a command that sends animation tick messages
func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// busy reports whether input is currently disabled
func (m Model) busy() bool {
	return m.snap.Streaming || m.pending
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4 // Header panel with border
		inputHeight := 6  // Input panel with border
		statusHeight := 1 // Status bar
		padding := 2      // Extra spacing

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
		if vpHeight < 5 {
			vpHeight = 5
		}

		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.asm.Cancel()
			return m, tea.Quit

		case "esc":
			if m.snap.Streaming || m.asm.Streaming() {
				m.asm.Cancel()
				m.notice = "Reply canceled"
				m.applySnapshot(m.asm.Snapshot())
				return m, nil
			}
			return m, tea.Quit

		case "ctrl+y":
			m.copyLastReply()
			return m, nil

		case "enter":
			if m.busy() {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m.submit(input)
		}

	case snapshotMsg:
		m.applySnapshot(transcript.Snapshot(msg))

	case exchangeDoneMsg:
		m.pending = false
		m.applySnapshot(m.asm.Snapshot())
		if msg.err != nil {
			m.err = msg.err
		}

	case noticeMsg:
		m.pending = false
		m.notice = msg.text
		if msg.err != nil {
			m.err = msg.err
		}

	case spinner.TickMsg:
		if m.busy() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.busy() {
			m.animationFrame++
			// pick up any snapshot the sink skipped
			m.applySnapshot(m.asm.Snapshot())
			cmds = append(cmds, animationTick())
		}
	}

	// Only pass KeyMsg to textarea to prevent escape sequence leaks
	if !m.busy() {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// applySnapshot installs snap unless a newer one was already seen
func (m *Model) applySnapshot(snap transcript.Snapshot) {
	if snap.Seq < m.snap.Seq {
		return
	}
	m.snap = snap
	m.updateViewport()
	m.viewport.GotoBottom()
}

// submit dispatches a line of input
func (m Model) submit(input string) (tea.Model, tea.Cmd) {
	m.err = nil
	m.notice = ""

	cmd := parseInput(input)
	if cmd.needsArg() {
		m.notice = cmd.usage()
		return m, nil
	}

	switch cmd.kind {
	case slashQuit:
		return m, tea.Quit

	case slashClear:
		if err := m.asm.Reset(); err != nil {
			m.err = err
			return m, nil
		}
		m.notice = "Conversation cleared"
		m.applySnapshot(m.asm.Snapshot())
		return m, nil

	case slashSave:
		if err := transcript.SaveFile(cmd.arg, m.asm.Transcript()); err != nil {
			m.err = err
			return m, nil
		}
		m.notice = "Saved to " + cmd.arg
		return m, nil

	case slashUpload:
		m.pending = true
		return m, tea.Batch(m.upload(cmd.arg), m.spinner.Tick, animationTick())

	case slashSession:
		m.pending = true
		return m, tea.Batch(m.sessionCommand(cmd), m.spinner.Tick, animationTick())

	case slashInstruct:
		m.pending = true
		return m, tea.Batch(m.instruct(cmd.arg), m.spinner.Tick, animationTick())

	case slashServer:
		m.pending = true
		return m, tea.Batch(m.send(func(ctx context.Context) error {
			return m.asm.SendCommand(ctx, cmd.line)
		}), m.spinner.Tick, animationTick())
	}

	m.pending = true
	m.animationFrame = 0
	return m, tea.Batch(m.send(func(ctx context.Context) error {
		return m.asm.Send(ctx, input)
	}), m.spinner.Tick, animationTick())
}

// send runs an exchange off the update loop
func (m Model) send(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return exchangeDoneMsg{err: fn(ctx)}
	}
}

// instruct sets an instruction on the server, then streams the reply to it
func (m Model) instruct(text string) tea.Cmd {
	ctx, client, asm := m.ctx, m.client, m.asm
	return func() tea.Msg {
		if _, err := client.Instruct(ctx, text); err != nil {
			return exchangeDoneMsg{err: fmt.Errorf("failed to set instruction: %w", err)}
		}
		return exchangeDoneMsg{err: asm.Send(ctx, text)}
	}
}

func (m Model) upload(path string) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		reply, err := client.Upload(ctx, path)
		if err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "✔ " + reply}
	}
}

func (m Model) sessionCommand(cmd slashCommand) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		reply, err := client.SessionCommand(ctx, cmd.action)
		if err != nil {
			return noticeMsg{err: fmt.Errorf("session %s failed: %w", cmd.action, err)}
		}
		return noticeMsg{text: "✔ " + reply}
	}
}

// copyLastReply puts the last assistant message on the clipboard
func (m *Model) copyLastReply() {
	reply := m.snap.Transcript.LastReply()
	if reply == "" {
		m.notice = "Nothing to copy"
		return
	}
	if err := m.clipboard(reply); err != nil {
		m.err = fmt.Errorf("failed to copy to clipboard: %w", err)
		return
	}
	m.notice = "Copied last reply"
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	// Header
	headerParts := []string{
		titleStyle.Render("✦ streamchat"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.modelName),
	}
	if m.persona != nil {
		headerParts = append(headerParts,
			hintStyle.Render("  •  "),
			configValueStyle.Render(m.persona.Name),
		)
	}
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center, headerParts...)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	// Messages
	var messagesContent string
	if m.snap.Transcript.Len() == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	// Input
	var inputContent string
	if m.busy() {
		inputContent = m.renderLoadingAnimation()
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderWelcome renders the welcome screen when no messages exist
func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	height := m.viewport.Height

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		welcomeIconStyle.Width(width).Render("✦"),
		"",
		welcomeTitleStyle.Width(width).Render("streamchat"),
		"",
		welcomeStyle.Width(width).Render("Type a message below. /upload, /instruct, /save and /session/* are available."),
		"",
	)

	topPadding := (height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}

	return strings.Repeat("\n", topPadding) + content
}

// renderLoadingAnimation renders the indicator shown while input is disabled
func (m Model) renderLoadingAnimation() string {
	dots := strings.Repeat("●", (m.animationFrame/3)%4)
	label := "Waiting for the server"
	if m.snap.Streaming {
		label = "Receiving reply"
	}
	return fmt.Sprintf("%s %s %s  %s",
		m.spinner.View(),
		lipgloss.NewStyle().Foreground(colorText).Render(label),
		loadingStyle.Render(dots),
		hintStyle.Render("Esc to cancel"),
	)
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	escDesc := "Quit"
	if m.snap.Streaming {
		escDesc = "Cancel"
	}
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Esc", escDesc},
		{"Ctrl+Y", "Copy"},
		{"↑↓", "Scroll"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, lipgloss.JoinHorizontal(
			lipgloss.Center,
			statusKeyStyle.Render(s.key),
			statusDescStyle.Render(" "+s.desc),
		))
	}

	bar := strings.Join(items, "  │  ")
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// updateViewport refreshes the viewport content with styled messages
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}

	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	opts := m.renderOpts.WithWidth(max(bubbleWidth-4, 20))
	n := m.snap.Transcript.Len()

	for i, msg := range m.snap.Transcript.All() {
		if i > 0 {
			content.WriteString("\n")
		}

		if msg.Role == transcript.RoleUser {
			label := userLabelStyle.Render("● You")
			bubble := userBubbleStyle.Width(bubbleWidth).Render(msg.Content)
			content.WriteString(label + "\n" + bubble)
		} else {
			label := assistantLabelStyle.Render("✦ Assistant")
			streaming := m.snap.Streaming && i == n-1

			var body string
			switch {
			case streaming && msg.Content == "":
				body = m.spinner.View()
			case streaming:
				body = renderOrRaw(render.Partial, msg.Content, opts)
			default:
				body = renderOrRaw(render.Markdown, msg.Content, opts)
			}

			bubble := assistantBubbleStyle.Width(bubbleWidth).Render(body)
			content.WriteString(label + "\n" + bubble)
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
}

func renderOrRaw(fn func(string, render.Options) (string, error), content string, opts render.Options) string {
	out, err := fn(content, opts)
	if err != nil {
		return content
	}
	// Trim trailing newlines from glamour
	return strings.TrimRight(out, "\n")
}

// RunChat starts the chat TUI and blocks until it exits.
// Any reply still streaming is canceled on exit.
func RunChat(ctx context.Context, cfg ChatConfig) error {
	sink := newProgramSink()

	opts := []transcript.Option{
		transcript.WithObserver(sink.observe),
		transcript.WithTimeout(cfg.Timeout),
		transcript.WithTrimLeadingSpace(cfg.TrimLeadingSpace),
		transcript.WithLogger(cfg.Logger),
	}
	asm := transcript.New(cfg.Client, opts...)
	defer asm.Cancel()

	m := NewChatModel(ctx, cfg, asm)
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	sink.attach(p)

	_, err := p.Run()
	return err
}
