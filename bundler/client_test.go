package bundler_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/test"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedOp(t *testing.T, chainID uint64) *types.PendingOperation {
	op := &types.PendingOperation{
		ChainID:              chainID,
		Sender:               test.Account,
		Nonce:                big.NewInt(3),
		CallData:             []byte{0x7b, 0xb3},
		CallGasLimit:         big.NewInt(100),
		VerificationGasLimit: big.NewInt(200),
		PreVerificationGas:   big.NewInt(300),
		MaxFeePerGas:         big.NewInt(400),
		MaxPriorityFeePerGas: big.NewInt(500),
		EntryPoint:           test.EntryPoint,
	}
	require.NoError(t, op.SetSignature([]byte{0xaa, 0xbb}))
	return op
}

func newClient(t *testing.T, chainID uint64) (bundler.Client, *test.BundlerService) {
	net, err := test.NewNetwork(chainID)
	require.NoError(t, err)
	t.Cleanup(net.Close)
	return net.BundlerClients()[chainID], net.Bundlers[chainID]
}

func TestSendAndReceipt(t *testing.T) {
	client, svc := newClient(t, 10)
	svc.PendingPolls = 1

	opHash, err := client.SendUserOperation(context.Background(), signedOp(t, 10))
	require.NoError(t, err)
	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0xaa, 0xbb}, []byte(sent[0].Signature))
	assert.Equal(t, int64(3), sent[0].Nonce.ToInt().Int64())

	receipt, err := client.GetUserOperationReceipt(context.Background(), opHash)
	require.NoError(t, err)
	assert.Nil(t, receipt)

	receipt, err = client.GetUserOperationReceipt(context.Background(), opHash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Success)
	assert.Equal(t, test.TxHashFor(opHash), receipt.TransactionHash)
}

func TestSendRejected(t *testing.T) {
	client, svc := newClient(t, 1)
	svc.Outcome = test.OutcomeReject
	svc.RejectReason = "AA21 didn't pay prefund"

	_, err := client.SendUserOperation(context.Background(), signedOp(t, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrBundlerRejected))
	assert.Contains(t, err.Error(), "AA21")
}

func TestSendUnsigned(t *testing.T) {
	client, svc := newClient(t, 1)
	_, err := client.SendUserOperation(context.Background(), &types.PendingOperation{ChainID: 1})
	assert.Error(t, err)
	assert.Empty(t, svc.Sent())
}

func TestRevertedReceipt(t *testing.T) {
	client, svc := newClient(t, 42)
	svc.Outcome = test.OutcomeRevert
	svc.RevertReason = "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000005" +
		"4753303133000000000000000000000000000000000000000000000000000000"

	opHash, err := client.SendUserOperation(context.Background(), signedOp(t, 42))
	require.NoError(t, err)
	receipt, err := client.GetUserOperationReceipt(context.Background(), opHash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.False(t, receipt.Success)
	assert.Equal(t, "GS013", receipt.FailureReason)
}

func TestUnknownOperationHasNoReceipt(t *testing.T) {
	client, _ := newClient(t, 1)
	receipt, err := client.GetUserOperationReceipt(context.Background(), common.HexToHash("0x01"))
	assert.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestFromOperation(t *testing.T) {
	op := signedOp(t, 1)
	factory := test.Factory
	op.Factory = &factory
	op.FactoryData = []byte{1}
	uo := bundler.FromOperation(op, []byte{9})
	require.NotNil(t, uo.Factory)
	assert.Equal(t, factory, *uo.Factory)
	assert.Nil(t, uo.Paymaster)
	assert.Equal(t, []byte{9}, []byte(uo.Signature))

	op.CallData[0] = 0
	assert.Equal(t, byte(0x7b), uo.CallData[0])
}
