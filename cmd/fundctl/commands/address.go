package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

func addressCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address controlled by a private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := loadKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), crypto.PubkeyToAddress(priv.PublicKey).Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "private key hex (default $"+keyEnvVar+")")
	return cmd
}
