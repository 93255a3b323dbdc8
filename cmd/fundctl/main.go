package main

import (
	"os"

	"github.com/congo-pay/fundauth/cmd/fundctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
