// Package bundler talks to EIP-4337 bundlers over JSON-RPC.
package bundler

import (
	"context"
	"errors"
	"fmt"

	"github.com/celer-network/go-multichain/log"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is one chain's bundler.
type Client interface {
	// SendUserOperation submits a signed operation and returns its user operation hash.
	// A JSON-RPC error from the bundler is an ErrBundlerRejected.
	SendUserOperation(ctx context.Context, op *types.PendingOperation) (common.Hash, error)
	// GetUserOperationReceipt returns nil while the operation is not yet included.
	GetUserOperationReceipt(ctx context.Context, opHash common.Hash) (*types.Receipt, error)
	// EstimateUserOperationGas estimates gas for op carrying a placeholder signature.
	EstimateUserOperationGas(ctx context.Context, op *types.PendingOperation, signature []byte) (*GasEstimate, error)
}

var _ Client = (*RPCClient)(nil)

type RPCClient struct {
	chainID uint64
	rpc     *rpc.Client
	logger  *log.Logger
}

// Dial connects to a bundler endpoint.
func Dial(ctx context.Context, desc types.ChainDescriptor) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, desc.BundlerEndpoint)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d bundler: %v: %w", desc.ChainID, err, types.ErrNetwork)
	}
	return NewRPCClient(desc.ChainID, c), nil
}

func NewRPCClient(chainID uint64, c *rpc.Client) *RPCClient {
	return &RPCClient{
		chainID: chainID,
		rpc:     c,
		logger:  log.NewLogger("bundler").WithChain(chainID),
	}
}

func (c *RPCClient) Close() {
	c.rpc.Close()
}

// classify maps a JSON-RPC error object to rejected, anything else to a network error.
func (c *RPCClient) classify(method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %s (code %d): %w", method, rpcErr.Error(), rpcErr.ErrorCode(), types.ErrBundlerRejected)
	}
	return fmt.Errorf("%s: %v: %w", method, err, types.ErrNetwork)
}

func (c *RPCClient) SendUserOperation(ctx context.Context, op *types.PendingOperation) (common.Hash, error) {
	if !op.IsSigned() {
		return common.Hash{}, fmt.Errorf("eth_sendUserOperation: chain %d operation is unsigned", op.ChainID)
	}
	var opHash common.Hash
	err := c.rpc.CallContext(ctx, &opHash, "eth_sendUserOperation", FromOperation(op, op.Signature()), op.EntryPoint)
	if err != nil {
		c.logger.Warn().Err(err).Msg("bundler did not accept operation")
		return common.Hash{}, c.classify("eth_sendUserOperation", err)
	}
	c.logger.Info().Str("opHash", opHash.Hex()).Msg("operation accepted")
	return opHash, nil
}

func (c *RPCClient) GetUserOperationReceipt(ctx context.Context, opHash common.Hash) (*types.Receipt, error) {
	var receipt *UserOperationReceipt
	err := c.rpc.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", opHash)
	if errors.Is(err, rpc.ErrNoResult) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eth_getUserOperationReceipt: %v: %w", err, types.ErrNetwork)
	}
	if receipt == nil {
		return nil, nil
	}
	return receipt.ToReceipt(), nil
}

func (c *RPCClient) EstimateUserOperationGas(ctx context.Context, op *types.PendingOperation, signature []byte) (*GasEstimate, error) {
	var estimate GasEstimate
	err := c.rpc.CallContext(ctx, &estimate, "eth_estimateUserOperationGas", FromOperation(op, signature), op.EntryPoint)
	if err != nil {
		return nil, c.classify("eth_estimateUserOperationGas", err)
	}
	if estimate.CallGasLimit == nil || estimate.VerificationGasLimit == nil || estimate.PreVerificationGas == nil {
		return nil, fmt.Errorf("eth_estimateUserOperationGas: incomplete estimate: %w", types.ErrNetwork)
	}
	return &estimate, nil
}
