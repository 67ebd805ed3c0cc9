package main

import "github.com/forgecoin/forgecoin/app/wallet/cmd"

func main() {
	cmd.Execute()
}
