package utils

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestDecodeRevertReason(t *testing.T) {
	// Error("this is my require msg.")
	data := common.FromHex("0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000017" +
		"74686973206973206d792072657175697265206d73672e000000000000000000")
	assert.Equal(t, "this is my require msg.", DecodeRevertReason(data))

	panicData := common.FromHex("0x4e487b71" + "0000000000000000000000000000000000000000000000000000000000000011")
	assert.Equal(t, "panic 0x11", DecodeRevertReason(panicData))

	assert.Equal(t, "", DecodeRevertReason(nil))
	assert.Equal(t, "dead", DecodeRevertReason([]byte{0xde, 0xad}))
	assert.Equal(t, "AA21 didn't pay prefund", DecodeRevertReasonHex("AA21 didn't pay prefund"))
}

func TestHex2Bytes(t *testing.T) {
	assert.Equal(t, []byte{0x0a, 0xbc}, Hex2Bytes("0xabc"))
	assert.Equal(t, []byte{0xab}, Hex2Bytes("ab"))
}
