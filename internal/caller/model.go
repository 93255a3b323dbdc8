// Package caller attributes every request to an account address. Callers
// prove they control an address by presenting an API key whose bcrypt hash
// is registered for it.
package caller

import "github.com/ethereum/go-ethereum/common"

// Credential binds an address to the bcrypt hash of its API key.
type Credential struct {
	Address common.Address
	KeyHash []byte
}
