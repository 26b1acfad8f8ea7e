// Package strkey implements Stellar strkey encoding for the two address
// kinds this service handles: contract addresses (C...) and account
// addresses (G...). A strkey is base32 (RFC 4648, no padding) over
// version byte || payload || CRC16-XModem checksum (little-endian).
package strkey

import (
	"encoding/base32"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const (
	versionAccount  byte = 6 << 3 // leading 'G'
	versionContract byte = 2 << 3 // leading 'C'

	payloadLen = 32
	encodedLen = 56 // base32 of 1 version + 32 payload + 2 checksum bytes
)

var (
	// ErrInvalidFormat is returned for strkeys with the wrong length,
	// alphabet or version byte.
	ErrInvalidFormat = errors.New("strkey: invalid format")

	// ErrChecksumMismatch is returned when the embedded CRC16 does not
	// match the decoded payload.
	ErrChecksumMismatch = errors.New("strkey: checksum mismatch")
)

// DecodeContract decodes a C... contract strkey and returns the 32-byte hash.
func DecodeContract(s string) ([]byte, error) {
	return decode(versionContract, s)
}

// DecodeAccount decodes a G... account strkey and returns the 32-byte
// ed25519 public key.
func DecodeAccount(s string) ([]byte, error) {
	return decode(versionAccount, s)
}

// EncodeContract encodes a 32-byte contract hash as a C... strkey.
func EncodeContract(payload []byte) (string, error) {
	return encode(versionContract, payload)
}

// EncodeAccount encodes a 32-byte ed25519 public key as a G... strkey.
func EncodeAccount(payload []byte) (string, error) {
	return encode(versionAccount, payload)
}

// IsContract reports whether s is a well-formed contract address.
func IsContract(s string) bool {
	_, err := DecodeContract(s)
	return err == nil
}

// IsAccount reports whether s is a well-formed account address whose key
// decodes to a canonical ed25519 point.
func IsAccount(s string) bool {
	raw, err := DecodeAccount(s)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

func encode(version byte, payload []byte) (string, error) {
	if len(payload) != payloadLen {
		return "", fmt.Errorf("%w: payload must be %d bytes, got %d", ErrInvalidFormat, payloadLen, len(payload))
	}

	data := make([]byte, 0, 1+payloadLen+2)
	data = append(data, version)
	data = append(data, payload...)

	sum := crc16(data)
	data = append(data, byte(sum&0xff), byte(sum>>8))

	return encoding.EncodeToString(data), nil
}

func decode(version byte, s string) ([]byte, error) {
	if len(s) != encodedLen {
		return nil, ErrInvalidFormat
	}

	data, err := encoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	if len(data) != 1+payloadLen+2 {
		return nil, ErrInvalidFormat
	}
	if data[0] != version {
		return nil, ErrInvalidFormat
	}

	body := data[:len(data)-2]
	want := uint16(data[len(data)-2]) | uint16(data[len(data)-1])<<8
	if crc16(body) != want {
		return nil, ErrChecksumMismatch
	}

	payload := make([]byte, payloadLen)
	copy(payload, body[1:])
	return payload, nil
}

// crc16 computes CRC16-XModem (poly 0x1021, zero initial value).
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
