package cmd

import (
	"fmt"
	"log"

	"github.com/forgecoin/forgecoin/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair",
	Run: func(cmd *cobra.Command, args []string) {
		w, err := wallet.New()
		if err != nil {
			log.Fatal(err)
		}
		if err := w.Save(getPrivateKeyPath()); err != nil {
			log.Fatal(err)
		}
		fmt.Println("address:", w.Address())
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
