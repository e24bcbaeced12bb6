// Package commands provides CLI commands for streamchat.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/config"
	"github.com/diogo/streamchat/internal/models"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	server  string
	key     string
	model   string
	timeout time.Duration
	verbose bool
}

// Settings is the configuration a command runs with: the config file with
// environment overrides and flags applied on top.
type Settings struct {
	Config  config.Config
	Model   models.Model
	Timeout time.Duration
	Verbose bool
}

// settings loads the config file and applies the flags that were set
func (o *globalOptions) settings(cmd *cobra.Command) (*Settings, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		if err := cfg.Set("server_url", o.server); err != nil {
			return nil, err
		}
	}
	if flags.Changed("key") {
		cfg.KeyPath = o.key
	}
	if flags.Changed("model") {
		cfg.DefaultModel = o.model
	}

	s := &Settings{
		Config:  cfg,
		Model:   models.ModelFromName(cfg.DefaultModel),
		Timeout: cfg.StreamDeadline(),
		Verbose: cfg.Verbose,
	}
	if flags.Changed("timeout") {
		s.Timeout = max(o.timeout, 0)
	}
	if flags.Changed("verbose") {
		s.Verbose = o.verbose
	}
	return s, nil
}

// queryOptions are the flags of the root one-shot query
type queryOptions struct {
	file     string
	output   string
	persona  string
	markdown bool
	copy     bool
}

// NewRootCmd creates the streamchat command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps == nil {
		deps = NewDependencies()
	}

	opts := &globalOptions{}
	qopts := &queryOptions{}

	rootCmd := &cobra.Command{
		Use:   "streamchat [prompt]",
		Short: "Streaming chat client for a local inference server",
		Long: `streamchat talks to a chat inference server that streams replies as
server-sent events. Requests are authenticated with short-lived tokens
signed by a local private key.

Examples:
  streamchat keygen                       Create a signing key
  streamchat chat                         Start interactive chat
  streamchat config                       Configure settings
  streamchat "What is Go?"                Send a single query
  streamchat -f prompt.md                 Read prompt from file
  cat prompt.md | streamchat              Read prompt from stdin
  streamchat "Hello" -o response.md       Save response to file
  streamchat upload notes.pdf             Hand a document to the server`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(deps.Stdout, "streamchat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			prompt, ok, err := readPrompt(deps, qopts.file, args)
			if err != nil {
				return err
			}
			if !ok {
				return cmd.Help()
			}

			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), deps, s, prompt, qopts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.server, "server", "", "Server URL (default from config, "+config.EnvServer+")")
	pf.StringVar(&opts.key, "key", "", "Path to the PEM signing key")
	pf.StringVarP(&opts.model, "model", "m", "", "Model to ask the server for")
	pf.DurationVar(&opts.timeout, "timeout", 0, "Deadline for a whole reply (0 disables)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.Flags().StringVarP(&qopts.file, "file", "f", "", "Read prompt from file")
	rootCmd.Flags().StringVarP(&qopts.output, "output", "o", "", "Save response to file")
	rootCmd.Flags().StringVarP(&qopts.persona, "persona", "p", "", "Send a persona instruction before the prompt")
	rootCmd.Flags().BoolVar(&qopts.markdown, "markdown", false, "Render the answer as markdown when stdout is a terminal")
	rootCmd.Flags().BoolVar(&qopts.copy, "copy", false, "Copy the answer to the clipboard")
	rootCmd.Flags().Bool("version", false, "Show version and exit")

	rootCmd.SetIn(deps.Stdin)
	rootCmd.SetOut(deps.Stdout)
	rootCmd.SetErr(deps.Stderr)

	rootCmd.AddCommand(
		NewChatCmd(deps, opts),
		NewUploadCmd(deps, opts),
		NewInstructCmd(deps, opts),
		NewSessionCmd(deps, opts),
		NewImportKeyCmd(deps),
		NewKeygenCmd(deps),
		NewConfigCmd(deps),
		NewPersonaCmd(deps),
	)

	return rootCmd
}

// readPrompt returns the prompt from -f, stdin or the positional argument,
// in that order. ok is false when none was given.
func readPrompt(deps *Dependencies, file string, args []string) (string, bool, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	if deps.StdinIsPipe() {
		data, err := io.ReadAll(deps.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), true, nil
	}

	if len(args) > 0 {
		return args[0], true, nil
	}
	return "", false, nil
}

// Execute runs the root command. Ctrl+C cancels the running command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := NewDependencies()
	if err := NewRootCmd(deps).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Error"))
		stop()
		os.Exit(1)
	}
}
