// Package commands implements fundctl, the operator CLI for the fund
// authorization ledger: computing and signing transfer digests, deriving
// addresses, hashing caller API keys and relaying signed transfers.
package commands
