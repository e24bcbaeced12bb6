package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/render"
	"github.com/diogo/streamchat/internal/tui"
)

// NewChatCmd creates the interactive chat command
func NewChatCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	var personaName string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Replies stream into the window as they arrive. Esc cancels a reply that
is still streaming. Type 'exit', 'quit', or press Ctrl+C to end the session.

Slash commands:
  /clear                 Clear the conversation
  /save <file>           Save the conversation (.md or .json)
  /upload <path>         Hand a document to the server
  /instruct <text>       Set an instruction for the session
  /session/dump          Dump, restore or merge the server session
  /<command> [text]      Stream the reply of any other server command`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			return runChat(cmd, deps, s, personaName)
		},
	}

	cmd.Flags().StringVarP(&personaName, "persona", "p", "", "Persona whose instruction is sent first")
	return cmd
}

func runChat(cmd *cobra.Command, deps *Dependencies, s *Settings, personaName string) error {
	var persona *config.Persona
	if personaName != "" {
		p, err := loadPersona(personaName)
		if err != nil {
			return err
		}
		persona = p
	}

	// The TUI owns the terminal, so logs go to a file
	logPath, err := config.GetLogPath()
	if err != nil {
		return err
	}
	logger, closer, err := logging.OpenFile(logPath, s.Verbose)
	if err != nil {
		return err
	}
	defer closer.Close()

	spin := newSpinner(deps.Stderr, "Connecting to "+s.Config.ServerURL).start()
	client, err := deps.connect(s, logger)
	if err != nil {
		spin.stopWithError()
		return err
	}
	defer client.Close()
	spin.stopWithSuccess("Connected")

	logger.Info("chat started", "server", s.Config.ServerURL, "model", modelLabel(s.Model))

	err = deps.TUI.RunChat(cmd.Context(), tui.ChatConfig{
		Client:           client,
		ModelName:        modelLabel(s.Model),
		Render:           render.OptionsFromConfig(s.Config),
		Timeout:          s.Timeout,
		TrimLeadingSpace: s.Config.TrimLeadingSpace,
		Logger:           logger,
		Persona:          persona,
	})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
