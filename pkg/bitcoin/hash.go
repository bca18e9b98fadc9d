// Package bitcoin provides the Bitcoin-compatible instantiation of the
// merkle engine: a 32-byte hash rendered as little-endian hex the way block
// explorers print it, a double-SHA256 pair hasher, and JSON types for raw
// block payloads used by the test harness.
package bitcoin

import (
	"fmt"
)

// hashCharLen is the length of the textual hash form: 64 hex characters.
const hashCharLen = 64

// Hash is a 32-byte hash stored big-endian. Its textual form is 64
// lowercase hex characters in little-endian (reversed-byte) order, matching
// how Bitcoin tooling displays transaction and block hashes.
type Hash [32]byte

// BEBytes returns the internal big-endian byte order.
func (h Hash) BEBytes() [32]byte { return h }

// LEBytes returns the bytes in reversed, little-endian order — the order
// the textual form is derived from.
func (h Hash) LEBytes() [32]byte {
	var le [32]byte
	for i, b := range h {
		le[31-i] = b
	}
	return le
}

// String renders the canonical little-endian lowercase hex form.
func (h Hash) String() string {
	buf := make([]byte, 0, hashCharLen)
	for i := 31; i >= 0; i-- {
		buf = append(buf, hexDigit(h[i]>>4), hexDigit(h[i]&0x0f))
	}
	return string(buf)
}

func hexDigit(x byte) byte {
	if x < 10 {
		return '0' + x
	}
	return 'a' + x - 10
}

// InvalidLengthError reports a hash string of the wrong length.
type InvalidLengthError int

func (e InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid hash string length: expected %d, got %d", hashCharLen, int(e))
}

// UnexpectedCharError reports a character outside '0'..'9', 'a'..'f'.
type UnexpectedCharError rune

func (e UnexpectedCharError) Error() string {
	return fmt.Sprintf("unexpected hash character %q: only '0'..'9' and 'a'..'f' are allowed", rune(e))
}

// ParseHash parses the canonical textual form: exactly 64 lowercase hex
// characters, little-endian byte order.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != hashCharLen {
		return h, InvalidLengthError(len(s))
	}

	for i := 0; i < hashCharLen; i += 2 {
		hi, err := hexNibble(s[i])
		if err != nil {
			return Hash{}, err
		}
		lo, err := hexNibble(s[i+1])
		if err != nil {
			return Hash{}, err
		}
		// Reversed byte order: the first hex pair is the last stored byte.
		h[31-i/2] = hi<<4 | lo
	}
	return h, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, UnexpectedCharError(c)
	}
}

// MarshalText implements encoding.TextMarshaler with the canonical form,
// which also makes Hash JSON-serializable as a hex string.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
