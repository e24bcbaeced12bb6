package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/transcript"
)

// NewUploadCmd creates the upload command
func NewUploadCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Hand a document to the server",
		Long: `Tell the server to load a document into the session. The server reads
the file itself, so the path must be reachable from the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			logger := logging.New(deps.Stderr, s.Verbose)

			client, err := deps.connect(s, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			reply, err := client.Upload(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			fmt.Fprintln(deps.Stdout, successStyle.Render("✓ "+reply))
			return nil
		},
	}
}

// NewInstructCmd creates the instruct command
func NewInstructCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "instruct <text...>",
		Short: "Set an instruction and stream the reply to it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("instruction cannot be empty")
			}

			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			logger := logging.New(deps.Stderr, s.Verbose)

			client, err := deps.connect(s, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			if _, err := client.Instruct(cmd.Context(), text); err != nil {
				return fmt.Errorf("failed to set instruction: %w", err)
			}

			out := &replyWriter{w: deps.Stdout}
			asm := transcript.New(client,
				transcript.WithObserver(out.observe),
				transcript.WithTimeout(s.Timeout),
				transcript.WithTrimLeadingSpace(s.Config.TrimLeadingSpace),
				transcript.WithLogger(logger),
			)
			if err := asm.Send(cmd.Context(), text); err != nil {
				return fmt.Errorf("instruct failed: %w", err)
			}
			if n, werr := out.result(); werr != nil {
				return fmt.Errorf("failed to write reply: %w", werr)
			} else if n > 0 && !strings.HasSuffix(asm.Transcript().LastReply(), "\n") {
				fmt.Fprintln(deps.Stdout)
			}
			return nil
		},
	}
}

// NewSessionCmd creates the session command
func NewSessionCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	var actions []string
	for _, a := range models.SessionActions() {
		actions = append(actions, string(a))
	}

	return &cobra.Command{
		Use:       "session <" + strings.Join(actions, "|") + ">",
		Short:     "Dump, restore or merge the server session",
		Args:      cobra.ExactArgs(1),
		ValidArgs: actions,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, ok := models.ParseSessionAction(args[0])
			if !ok {
				return fmt.Errorf("unknown session action %q (want one of %s)", args[0], strings.Join(actions, ", "))
			}

			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			logger := logging.New(deps.Stderr, s.Verbose)

			client, err := deps.connect(s, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			reply, err := client.SessionCommand(cmd.Context(), action)
			if err != nil {
				return fmt.Errorf("session %s failed: %w", action, err)
			}
			fmt.Fprintln(deps.Stdout, successStyle.Render("✓ "+reply))
			return nil
		},
	}
}
