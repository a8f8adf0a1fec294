package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Relay-Gate/Relaygate/internal/domain/auth"
)

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret [client-secret]",
	Short: "Generate an Argon2id hash for a client secret",
	Long: `Generate an Argon2id hash of a client secret for use in the client
registry.

The output is a PHC-format string ("$argon2id$...") which can be used
directly as the client_secret value in the clients file or sqlite store.
Plaintext secrets are also accepted there, but hashed storage means a
leaked registry does not leak the secrets themselves.

Example:
  relay-gate hash-secret "my-client-secret"
  # Output: $argon2id$v=19$m=48128,t=1,p=1$...

Security note: The secret will appear in shell history.
Consider clearing history after use or using an environment variable:
  relay-gate hash-secret "$MY_CLIENT_SECRET"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashSecret(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash secret: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashSecretCmd)
}
