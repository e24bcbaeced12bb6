package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/diogo/streamchat/internal/auth"
	"github.com/diogo/streamchat/internal/config"
)

// NewImportKeyCmd creates the import-key command
func NewImportKeyCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "import-key <path>",
		Short: "Import a PEM private key used to sign requests",
		Long: `Import a PEM encoded private key (Ed25519, RSA or ECDSA) into the
streamchat keys directory. The server must trust the matching public key.

Example:
  streamchat import-key ~/client.pem`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := auth.LoadSigner(args[0])
			if err != nil {
				return fmt.Errorf("invalid key: %w", err)
			}

			path, err := config.ImportKey(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(deps.Stdout, successStyle.Render(fmt.Sprintf("✓ Key imported to %s (%s)", path, signer.Algorithm())))
			return nil
		},
	}
}

// NewKeygenCmd creates the keygen command
func NewKeygenCmd(deps *Dependencies) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new Ed25519 signing key",
		Long: `Generate a new Ed25519 signing key in the streamchat keys directory
and print its public key. Give the public key to the server so it can
verify request tokens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.GetKeysDir()
			if err != nil {
				return err
			}
			target := filepath.Join(dir, config.DefaultKeyName)
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("a key already exists at %s (use --force to replace it)", target)
			}

			privatePEM, publicPEM, err := auth.GenerateKey()
			if err != nil {
				return err
			}
			path, err := config.SaveKey(privatePEM)
			if err != nil {
				return err
			}

			fmt.Fprintln(deps.Stderr, successStyle.Render("✓ Key written to "+path))
			fmt.Fprint(deps.Stdout, string(publicPEM))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing key")
	return cmd
}
