package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/diogo/streamchat/internal/api"
	"github.com/diogo/streamchat/internal/auth"
	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctx context.Context, cfg tui.ChatConfig) error
	RunConfig(cfg config.Config) error
}

// ClientFactory builds an API client for the resolved settings
type ClientFactory func(s *Settings, logger *log.Logger) (api.ClientInterface, error)

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewClient creates the streamchat API client.
	NewClient ClientFactory

	// TUI is the terminal user interface.
	TUI TUIInterface

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// StdinIsPipe reports whether a prompt can be read from Stdin
	StdinIsPipe func() bool
	// StdoutIsTTY reports whether Stdout is a terminal
	StdoutIsTTY func() bool
	// TerminalWidth returns the width used for rendered output
	TerminalWidth func() int

	Clipboard func(string) error
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctx context.Context, cfg tui.ChatConfig) error {
	return tui.RunChat(ctx, cfg)
}

func (d *DefaultTUI) RunConfig(cfg config.Config) error {
	return tui.RunConfig(cfg)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewClient:     newAPIClient,
		TUI:           &DefaultTUI{},
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		StdinIsPipe:   stdinIsPipe,
		StdoutIsTTY:   isStdoutTTY,
		TerminalWidth: getTerminalWidth,
		Clipboard:     clipboard.WriteAll,
	}
}

// newAPIClient loads the signing key and creates the TLS client
func newAPIClient(s *Settings, logger *log.Logger) (api.ClientInterface, error) {
	keyPath, err := config.ResolveKeyPath(s.Config)
	if err != nil {
		return nil, err
	}

	signer, err := auth.LoadSigner(keyPath,
		auth.WithIssuer(s.Config.Issuer),
		auth.WithSubject(s.Config.Subject),
		auth.WithKeyID(s.Config.KeyID),
		auth.WithTTL(s.Config.TokenLifetime()),
	)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(s.Config.ServerURL, signer,
		api.WithModel(s.Model),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// connect creates and initializes a client
func (d *Dependencies) connect(s *Settings, logger *log.Logger) (api.ClientInterface, error) {
	client, err := d.NewClient(s, logger)
	if err != nil {
		return nil, err
	}
	if err := client.Init(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return client, nil
}

// modelLabel is the model name shown to the user
func modelLabel(m models.Model) string {
	if m.Name == "" || m == models.ModelUnspecified {
		return "server default"
	}
	return m.Name
}

func stdinIsPipe() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// getTerminalWidth returns the terminal width or a default value
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
