package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	urlEnvVar    = "FUNDCTL_URL"
	apiKeyEnvVar = "FUNDCTL_API_KEY"
)

// relay: submit a signed transfer (as printed by sign) to the service.
func relayCmd() *cobra.Command {
	var (
		baseURL   string
		callerHex string
		apiKey    string
		file      string
		retries   int
		backoff   time.Duration
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Submit a signed transfer as an authorized caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress("caller", callerHex)
			if err != nil {
				return err
			}
			if apiKey == "" {
				apiKey = os.Getenv(apiKeyEnvVar)
			}
			if apiKey == "" {
				return fmt.Errorf("api key required (--api-key or $%s)", apiKeyEnvVar)
			}
			if retries < 0 {
				return fmt.Errorf("--retries must be >= 0")
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var req transferJSON
			if err := json.NewDecoder(in).Decode(&req); err != nil {
				return fmt.Errorf("decode transfer request: %w", err)
			}

			client := &relayClient{
				base:    baseURL,
				caller:  addr,
				apiKey:  apiKey,
				retries: retries,
				backoff: backoff,
				timeout: timeout,
			}
			resp, err := client.post(cmd.Context(), "/api/v1/ledger/transfers", req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(resp))
			return nil
		},
	}

	defaultURL := os.Getenv(urlEnvVar)
	if defaultURL == "" {
		defaultURL = "http://127.0.0.1:8080"
	}
	cmd.Flags().StringVar(&baseURL, "url", defaultURL, "service base URL (default $"+urlEnvVar+")")
	cmd.Flags().StringVar(&callerHex, "caller", "", "authorized caller address")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "caller API key (default $"+apiKeyEnvVar+")")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "signed transfer JSON, - for stdin")
	cmd.Flags().IntVar(&retries, "retries", 3, "retries on network errors, 429 and 5xx")
	cmd.Flags().DurationVar(&backoff, "backoff", 500*time.Millisecond, "initial retry backoff, doubled per attempt")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}
