package custody

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// NonceLength is the size of a transfer nonce in bytes.
const NonceLength = 32

// Nonce is a one-time value binding a signed transfer to a single execution.
type Nonce [NonceLength]byte

// ParseNonce decodes a 0x-prefixed (or bare) 64 digit hex string.
func ParseNonce(s string) (Nonce, error) {
	var n Nonce
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 2*NonceLength {
		return n, fmt.Errorf("nonce must be %d hex digits, got %d", 2*NonceLength, len(raw))
	}
	if _, err := hex.Decode(n[:], []byte(raw)); err != nil {
		return n, fmt.Errorf("decode nonce: %w", err)
	}
	return n, nil
}

// NonceFromText right-pads text with zero bytes. The last byte is reserved
// so the value stays a valid null terminated string.
func NonceFromText(text string) (Nonce, error) {
	var n Nonce
	if len(text) > NonceLength-1 {
		return n, fmt.Errorf("nonce text longer than %d bytes", NonceLength-1)
	}
	copy(n[:], text)
	return n, nil
}

// Hex returns the 0x-prefixed hex encoding.
func (n Nonce) Hex() string {
	return "0x" + hex.EncodeToString(n[:])
}

func (n Nonce) String() string {
	return n.Hex()
}
