package commands

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/congo-pay/fundauth/internal/custody"
)

// transferJSON is the body accepted by POST /api/v1/ledger/transfers.
type transferJSON struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

func signCmd() *cobra.Command {
	var (
		tf  transferFlags
		key string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a transfer with the owner key and print the request body",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, recipient, amount, nonce, err := tf.parse()
			if err != nil {
				return err
			}
			priv, err := loadKey(key)
			if err != nil {
				return err
			}
			sig, err := custody.SignTransfer(priv, ledger, recipient, amount, nonce)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(transferJSON{
				Recipient: recipient.Hex(),
				Amount:    amount.String(),
				Nonce:     nonce.Hex(),
				Signature: hexutil.Encode(sig),
			})
		},
	}
	tf.bind(cmd)
	cmd.Flags().StringVar(&key, "key", "", "owner private key hex (default $"+keyEnvVar+")")
	return cmd
}
