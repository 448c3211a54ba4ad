package utils

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}

// DecodeRevertReason renders revert data as text. Error(string) and Panic(uint256) are
// decoded; anything else is returned as hex.
func DecodeRevertReason(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) == 36 && bytes.Equal(data[:4], panicSelector) {
		return fmt.Sprintf("panic 0x%x", new(big.Int).SetBytes(data[4:]))
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	// some bundlers already return plain text
	if text := strings.TrimSpace(string(data)); isPrintable(text) {
		return text
	}
	return common.Bytes2Hex(data)
}

// DecodeRevertReasonHex is DecodeRevertReason for 0x-prefixed input.
func DecodeRevertReasonHex(s string) string {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return s
	}
	return DecodeRevertReason(Hex2Bytes(s))
}

// Hex2Bytes decodes hex with or without 0x prefix, tolerating odd length.
func Hex2Bytes(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return common.Hex2Bytes(s)
}

func isPrintable(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}
