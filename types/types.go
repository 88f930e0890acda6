// Package types contains the shared wire types used across the tally
// contract, the encryption oracle and the HTTP API.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AuxData is caller-supplied auxiliary metadata attached to audit events.
// It is opaque to the state machine and never inspected.
type AuxData map[string]string

// HexBytes is a []byte which encodes as 0x-prefixed hexadecimal in JSON.
type HexBytes []byte

// String returns the 0x-prefixed hexadecimal representation of b.
func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, 0, len(b)*2+4)
	enc = append(enc, '"', '0', 'x')
	enc = hex.AppendEncode(enc, b)
	enc = append(enc, '"')
	return enc, nil
}

// UnmarshalJSON implements json.Unmarshaler. It accepts hex strings with or
// without the 0x prefix.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return b.ParseString(s)
}

// ParseString parses a hex string, with or without the 0x prefix.
func (b *HexBytes) ParseString(s string) error {
	s = strings.TrimPrefix(s, "0x")
	dec, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex string: %w", err)
	}
	*b = dec
	return nil
}

// HexStringToHexBytes converts a hex string to HexBytes, panicking on
// malformed input. Only meant to be used in tests and constants.
func HexStringToHexBytes(s string) HexBytes {
	b := HexBytes{}
	if err := b.ParseString(s); err != nil {
		panic(err)
	}
	return b
}
