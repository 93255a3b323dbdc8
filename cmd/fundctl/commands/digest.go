package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/congo-pay/fundauth/internal/custody"
)

func digestCmd() *cobra.Command {
	var tf transferFlags
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the message hash and signed digest of a transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, recipient, amount, nonce, err := tf.parse()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "message: %s\n", hexutil.Encode(custody.MessageHash(recipient, amount, nonce, ledger)))
			fmt.Fprintf(out, "digest:  %s\n", hexutil.Encode(custody.TransferDigest(recipient, amount, nonce, ledger)))
			return nil
		},
	}
	tf.bind(cmd)
	return cmd
}
