package cmd

import (
	"fmt"
	"log"

	"github.com/forgecoin/forgecoin/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

// addressCmd represents the address command.
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address for the specific wallet",
	Run: func(cmd *cobra.Command, args []string) {
		w, err := wallet.Load(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(w.Address())
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
