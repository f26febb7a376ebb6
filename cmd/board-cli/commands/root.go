package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flashbots/anonboard/client"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/secretstore"
	"github.com/flashbots/anonboard/services"
	"github.com/spf13/cobra"
)

var (
	boardURL       string
	credentialPath string
	operatorKey    string
)

var rootCmd = &cobra.Command{
	Use:   "board-cli",
	Short: "Anonymous single-slot confession board",
	Long: `Post a confession, vote on the current one and see whether it is yours.

Your credential is kept in a local file and only the author tag derived from
it is sent to the board, so nobody else can link your posts to you.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&boardURL, "board", "http://localhost:8080", "Board server URL")
	rootCmd.PersistentFlags().StringVar(&credentialPath, "credential", defaultCredentialPath(), "Credential file")
	rootCmd.PersistentFlags().StringVar(&operatorKey, "operator", "", "Expected operator public key (hex, pinned from the board if empty)")
}

func defaultCredentialPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".anonboard/credential"
	}
	return filepath.Join(home, ".anonboard", "credential")
}

func newDriver() (*services.HTTPDriver, error) {
	var operator crypto.PublicKey
	if operatorKey != "" {
		key, err := crypto.NewPublicKeyFromString(operatorKey)
		if err != nil {
			return nil, fmt.Errorf("invalid --operator: %w", err)
		}
		operator = key
	}
	return services.NewHTTPDriver(boardURL, operator)
}

func newParticipant() (*client.Participant, *services.HTTPDriver, error) {
	secrets, err := secretstore.NewFileStore(credentialPath)
	if err != nil {
		return nil, nil, err
	}
	driver, err := newDriver()
	if err != nil {
		return nil, nil, err
	}
	p, err := client.NewParticipant(&client.ParticipantConfig{
		Secrets: secrets,
		Driver:  driver,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, driver, nil
}
