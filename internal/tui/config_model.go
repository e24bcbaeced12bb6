package tui

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/render"
)

// configView represents the current view in the config menu
type configView int

const (
	viewMain configView = iota
	viewModelSelect
	viewTimeoutSelect
	viewThemeSelect
)

// Menu item indices for main view
const (
	menuDefaultModel = iota
	menuStreamTimeout
	menuTrimLeadingSpace
	menuVerbose
	menuCopyToClipboard
	menuTheme
	menuExit
	menuItemCount
)

// timeoutChoices are the stream timeouts offered in the menu, in seconds
var timeoutChoices = []int{0, 30, 60, 120, 300}

// feedbackClearMsg is sent to clear feedback messages
type feedbackClearMsg struct{}

// ConfigModel represents the config TUI state
type ConfigModel struct {
	config    config.Config
	save      func(config.Config) error
	configDir string
	keyPath   string
	keyExists bool

	// Navigation
	view      configView
	cursor    int
	subCursor int

	// Feedback
	feedback        string
	feedbackTimeout time.Duration

	// Dimensions
	width  int
	height int
	ready  bool
}

// NewConfigModel creates a config menu over cfg. Changes are written
// with config.SaveConfig as soon as they are made.
func NewConfigModel(cfg config.Config) ConfigModel {
	configDir, _ := config.GetConfigDir()
	keyPath, _ := config.ResolveKeyPath(cfg)

	keyExists := false
	if _, err := os.Stat(keyPath); err == nil {
		keyExists = true
	}

	return ConfigModel{
		config:          cfg,
		save:            config.SaveConfig,
		configDir:       configDir,
		keyPath:         keyPath,
		keyExists:       keyExists,
		view:            viewMain,
		feedbackTimeout: 2 * time.Second,
	}
}

// Init initializes the model
func (m ConfigModel) Init() tea.Cmd {
	return nil
}

// clearFeedback returns a command that clears the feedback message after a delay
func clearFeedback(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return feedbackClearMsg{}
	})
}

// choices returns the options of the current sub-menu
func (m ConfigModel) choices() []string {
	switch m.view {
	case viewModelSelect:
		var names []string
		for _, model := range models.AllModels() {
			names = append(names, model.Name)
		}
		return names
	case viewTimeoutSelect:
		var names []string
		for _, s := range timeoutChoices {
			names = append(names, formatTimeout(s))
		}
		return names
	case viewThemeSelect:
		return render.StyleNames()
	}
	return nil
}

// current returns the configured value shown by the current sub-menu
func (m ConfigModel) current() string {
	switch m.view {
	case viewModelSelect:
		return m.config.DefaultModel
	case viewTimeoutSelect:
		return formatTimeout(m.config.StreamTimeout)
	case viewThemeSelect:
		return m.themeName()
	}
	return ""
}

func (m ConfigModel) themeName() string {
	if m.config.Markdown.Style == "" {
		return "dark"
	}
	return m.config.Markdown.Style
}

func formatTimeout(seconds int) string {
	if seconds <= 0 {
		return "none"
	}
	return (time.Duration(seconds) * time.Second).String()
}

// Update handles messages and updates the model
func (m ConfigModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case feedbackClearMsg:
		m.feedback = ""

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.view != viewMain {
				m.view = viewMain
			} else {
				return m, tea.Quit
			}

		case "up", "k":
			if m.view == viewMain {
				m.cursor = (m.cursor - 1 + menuItemCount) % menuItemCount
			} else if n := len(m.choices()); n > 0 {
				m.subCursor = (m.subCursor - 1 + n) % n
			}

		case "down", "j":
			if m.view == viewMain {
				m.cursor = (m.cursor + 1) % menuItemCount
			} else if n := len(m.choices()); n > 0 {
				m.subCursor = (m.subCursor + 1) % n
			}

		case "enter", " ":
			return m.handleSelect()
		}
	}

	return m, nil
}

// openSubMenu switches to view with the cursor on the current value
func (m ConfigModel) openSubMenu(view configView) ConfigModel {
	m.view = view
	m.subCursor = max(slices.Index(m.choices(), m.current()), 0)
	return m
}

// handleSelect handles menu item selection
func (m ConfigModel) handleSelect() (tea.Model, tea.Cmd) {
	if m.view != viewMain {
		choices := m.choices()
		if m.subCursor >= len(choices) {
			m.view = viewMain
			return m, nil
		}
		choice := choices[m.subCursor]

		var label string
		switch m.view {
		case viewModelSelect:
			m.config.DefaultModel = choice
			label = "Model"
		case viewTimeoutSelect:
			m.config.StreamTimeout = timeoutChoices[m.subCursor]
			label = "Stream timeout"
		case viewThemeSelect:
			m.config.Markdown.Style = choice
			label = "Markdown theme"
		}
		m.view = viewMain
		return m.persist(fmt.Sprintf("%s set to %s", label, choice))
	}

	switch m.cursor {
	case menuDefaultModel:
		return m.openSubMenu(viewModelSelect), nil
	case menuStreamTimeout:
		return m.openSubMenu(viewTimeoutSelect), nil
	case menuTheme:
		return m.openSubMenu(viewThemeSelect), nil

	case menuTrimLeadingSpace:
		m.config.TrimLeadingSpace = !m.config.TrimLeadingSpace
		return m.persist("Trim leading space " + stateWord(m.config.TrimLeadingSpace))
	case menuVerbose:
		m.config.Verbose = !m.config.Verbose
		return m.persist("Verbose logging " + stateWord(m.config.Verbose))
	case menuCopyToClipboard:
		m.config.CopyToClipboard = !m.config.CopyToClipboard
		return m.persist("Copy to clipboard " + stateWord(m.config.CopyToClipboard))

	case menuExit:
		return m, tea.Quit
	}

	return m, nil
}

// persist saves the config and shows feedback
func (m ConfigModel) persist(feedback string) (tea.Model, tea.Cmd) {
	if err := m.save(m.config); err != nil {
		m.feedback = fmt.Sprintf("Error: %v", err)
	} else {
		m.feedback = feedback
	}
	return m, clearFeedback(m.feedbackTimeout)
}

func stateWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// View renders the TUI
func (m ConfigModel) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := max(m.width-4, 40)

	header := configHeaderStyle.Width(contentWidth).Render(configTitleStyle.Render("✦ Configuration"))
	sections = append(sections, header)

	// Paths
	keyStatus := configStatusErrorStyle.Render("✗ not found")
	if m.keyExists {
		keyStatus = configStatusOkStyle.Render("✓ exists")
	}
	pathsContent := lipgloss.JoinVertical(lipgloss.Left,
		configSectionTitleStyle.Render("Paths"),
		fmt.Sprintf("   Config: %s", configPathStyle.Render(m.configDir+"/config.json")),
		fmt.Sprintf("   Key:    %s  %s", configPathStyle.Render(m.keyPath), keyStatus),
		fmt.Sprintf("   Server: %s", configValueStyle.Render(m.config.ServerURL)),
	)
	sections = append(sections, configPanelStyle.Width(contentWidth).Render(pathsContent))

	var settingsContent string
	if m.view == viewMain {
		settingsContent = m.renderMainMenu()
	} else {
		settingsContent = m.renderSubMenu()
	}
	sections = append(sections, configPanelStyle.Width(contentWidth).Render(settingsContent))

	if m.feedback != "" {
		sections = append(sections, configFeedbackStyle.Render("✓ "+m.feedback))
	}

	sections = append(sections, m.renderStatusBar(contentWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderMainMenu renders the main settings menu
func (m ConfigModel) renderMainMenu() string {
	model := m.config.DefaultModel
	if model == "" {
		model = "server default"
	}

	rows := []struct {
		label string
		value string
	}{
		menuDefaultModel:     {"Default Model", configValueStyle.Render(model)},
		menuStreamTimeout:    {"Stream Timeout", configValueStyle.Render(formatTimeout(m.config.StreamTimeout))},
		menuTrimLeadingSpace: {"Trim Leading Space", m.renderBoolValue(m.config.TrimLeadingSpace)},
		menuVerbose:          {"Verbose Logging", m.renderBoolValue(m.config.Verbose)},
		menuCopyToClipboard:  {"Copy to Clipboard", m.renderBoolValue(m.config.CopyToClipboard)},
		menuTheme:            {"Markdown Theme", configValueStyle.Render(m.themeName())},
		menuExit:             {"Exit", ""},
	}

	items := []string{configSectionTitleStyle.Render("Settings"), ""}
	for i, row := range rows {
		if i == menuExit {
			items = append(items, "")
		}
		cursor := "  "
		style := configMenuItemStyle
		if m.cursor == i {
			cursor = configCursorStyle.Render("▸ ")
			style = configMenuSelectedStyle
		}
		line := cursor + style.Render(row.label)
		if row.value != "" {
			line += strings.Repeat(" ", max(22-len(row.label), 1)) + row.value
		}
		items = append(items, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

// renderSubMenu renders the options of the current sub-menu
func (m ConfigModel) renderSubMenu() string {
	var title string
	switch m.view {
	case viewModelSelect:
		title = "Select Model"
	case viewTimeoutSelect:
		title = "Select Stream Timeout"
	case viewThemeSelect:
		title = "Select Markdown Theme"
	}

	items := []string{configSectionTitleStyle.Render(title), ""}
	current := m.current()
	for i, choice := range m.choices() {
		cursor := "  "
		style := configMenuItemStyle
		if m.subCursor == i {
			cursor = configCursorStyle.Render("▸ ")
			style = configMenuSelectedStyle
		}
		mark := ""
		if choice == current {
			mark = configStatusOkStyle.Render(" (current)")
		}
		items = append(items, cursor+style.Render(choice)+mark)
	}

	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

// renderBoolValue renders a boolean value with appropriate styling
func (m ConfigModel) renderBoolValue(value bool) string {
	if value {
		return configEnabledStyle.Render("enabled")
	}
	return configDisabledStyle.Render("disabled")
}

// renderStatusBar renders the bottom status bar
func (m ConfigModel) renderStatusBar(width int) string {
	escDesc := "Exit"
	if m.view != viewMain {
		escDesc = "Back"
	}
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"↑↓", "Navigate"},
		{"Enter", "Select"},
		{"Esc", escDesc},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}

	return configStatusBarStyle.Width(width).Render(strings.Join(items, "  │  "))
}

// RunConfig starts the config TUI
func RunConfig(cfg config.Config) error {
	p := tea.NewProgram(
		NewConfigModel(cfg),
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}
