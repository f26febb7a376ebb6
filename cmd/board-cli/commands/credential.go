package commands

import (
	"fmt"

	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/secretstore"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var credentialSlot int64

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Create the local credential if needed and show where it is kept",
	Long: `Create the local credential if needed and show where it is kept.

With --slot, also print the author tag the credential yields for that slot id.
The credential itself is never printed.`,
	Args: cobra.NoArgs,
	RunE: runCredential,
}

func init() {
	credentialCmd.Flags().Int64Var(&credentialSlot, "slot", -1, "Print the author tag for this slot id")
	rootCmd.AddCommand(credentialCmd)
}

func runCredential(cmd *cobra.Command, args []string) error {
	store, err := secretstore.NewFileStore(credentialPath)
	if err != nil {
		return err
	}
	cred, err := store.GetOrCreateCredential()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pterm.Info.WithWriter(out).Printfln("Credential stored at %s", store.Path())

	if credentialSlot >= 0 {
		tag, err := crypto.DeriveAuthorTag(cred, uint64(credentialSlot))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "author tag for slot %d: %s\n", credentialSlot, tag)
	}
	return nil
}
