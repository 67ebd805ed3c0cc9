package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/forgecoin/forgecoin/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

// balanceCmd represents the balance command.
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run: func(cmd *cobra.Command, args []string) {
		w, err := wallet.Load(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println("for account:", w.Address())

		resp, err := http.Get(fmt.Sprintf("%s/v1/balances/%s", url, w.Address()))
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()

		var balance struct {
			Address string  `json:"address"`
			Balance float64 `json:"balance"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
			log.Fatal(err)
		}

		fmt.Println(balance.Balance)
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
