package commands

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/congo-pay/fundauth/internal/custody"
	"github.com/congo-pay/fundauth/internal/units"
)

const keyEnvVar = "FUNDCTL_KEY"

var (
	ledgerHex string
	decimals  int32
)

// Execute runs the fundctl root command.
func Execute() error {
	return newRoot().Execute()
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "fundctl",
		Short:         "Operator tooling for the fund authorization ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&ledgerHex, "ledger", os.Getenv("LEDGER_ADDRESS"), "ledger identity address (default $LEDGER_ADDRESS)")
	root.PersistentFlags().Int32Var(&decimals, "decimals", units.DefaultDecimals, "unit decimals used by --value")

	root.AddCommand(digestCmd(), signCmd(), addressCmd(), hashKeyCmd(), relayCmd())
	return root
}

// transferFlags are shared by digest and sign.
type transferFlags struct {
	recipient string
	amount    string
	value     string
	nonce     string
}

func (f *transferFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "recipient address")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in smallest units")
	cmd.Flags().StringVar(&f.value, "value", "", "amount as a decimal value, scaled by --decimals")
	cmd.Flags().StringVar(&f.nonce, "nonce", "", "nonce as 0x-prefixed 32 byte hex, or text of at most 31 bytes")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("nonce")
	cmd.MarkFlagsMutuallyExclusive("amount", "value")
	cmd.MarkFlagsOneRequired("amount", "value")
}

func (f *transferFlags) parse() (ledger, recipient common.Address, amount *big.Int, nonce custody.Nonce, err error) {
	if ledger, err = parseAddress("ledger", ledgerHex); err != nil {
		return
	}
	if recipient, err = parseAddress("recipient", f.recipient); err != nil {
		return
	}
	if f.value != "" {
		amount, err = units.Parse(f.value, decimals)
	} else {
		amount, err = units.ParseInteger(f.amount)
	}
	if err != nil {
		return
	}
	nonce, err = parseNonce(f.nonce)
	return
}

func parseAddress(name, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("--%s must be a hex address, got %q", name, v)
	}
	return common.HexToAddress(v), nil
}

func parseNonce(v string) (custody.Nonce, error) {
	if strings.HasPrefix(v, "0x") && len(v) == 2+2*custody.NonceLength {
		return custody.ParseNonce(v)
	}
	return custody.NonceFromText(v)
}

func loadKey(flag string) (*ecdsa.PrivateKey, error) {
	raw := flag
	if raw == "" {
		raw = os.Getenv(keyEnvVar)
	}
	if raw == "" {
		return nil, fmt.Errorf("private key required (--key or $%s)", keyEnvVar)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
