package commands

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/config"
)

// NewPersonaCmd creates the persona command and its subcommands
func NewPersonaCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage chat personas",
		Long: `View and manage personas. A persona is a named instruction that
'streamchat chat --persona <name>' sends before the first prompt.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available personas",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPersonaList(deps)
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Show persona details",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPersonaShow(deps, args[0])
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a new persona",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPersonaAdd(deps, args[0])
			},
		},
	)

	return cmd
}

// loadPersona looks a persona up by name for the chat and query commands
func loadPersona(name string) (*config.Persona, error) {
	p, err := config.GetPersona(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load persona '%s': %w", name, err)
	}
	return p, nil
}

func runPersonaList(deps *Dependencies) error {
	cfg, err := config.LoadPersonas()
	if err != nil {
		return fmt.Errorf("failed to load personas: %w", err)
	}

	w := tabwriter.NewWriter(deps.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION\tDEFAULT")
	_, _ = fmt.Fprintln(w, "----\t-----------\t-------")

	for _, p := range cfg.Personas {
		isDefault := ""
		if p.Name == cfg.DefaultPersona {
			isDefault = "✓"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Description, isDefault)
	}

	return w.Flush()
}

func runPersonaShow(deps *Dependencies, name string) error {
	persona, err := config.GetPersona(name)
	if err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Name: %s\n", persona.Name)
	fmt.Fprintf(deps.Stdout, "Description: %s\n", persona.Description)
	instruction := persona.Instruction
	if instruction == "" {
		instruction = "(none)"
	}
	fmt.Fprintf(deps.Stdout, "\nInstruction:\n%s\n", instruction)

	return nil
}

func runPersonaAdd(deps *Dependencies, name string) error {
	if _, err := config.GetPersona(name); err == nil {
		return fmt.Errorf("persona '%s' already exists", name)
	}

	reader := bufio.NewReader(deps.Stdin)

	fmt.Fprint(deps.Stderr, "Enter description: ")
	desc, err := reader.ReadString('\n')
	if err != nil && desc == "" {
		return fmt.Errorf("failed to read description: %w", err)
	}
	desc = strings.TrimSpace(desc)

	fmt.Fprintln(deps.Stderr, "Enter instruction (end with an empty line):")
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\n\r")
		if line == "" {
			break
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}

	persona := config.Persona{
		Name:        name,
		Description: desc,
		Instruction: strings.Join(lines, "\n"),
	}
	if err := config.AddPersona(persona); err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Persona '%s' created.\n", name)
	return nil
}
