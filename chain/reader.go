// Package chain reads the account state that operation building depends on.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/celer-network/go-multichain/log"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// FeeData is the current fee market of a chain.
type FeeData struct {
	BaseFee              *big.Int
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
}

// Reader is the read side of one chain's RPC.
type Reader interface {
	Nonce(ctx context.Context, entryPoint, account common.Address, key *big.Int) (*big.Int, error)
	IsDeployed(ctx context.Context, account common.Address) (bool, error)
	IsModuleEnabled(ctx context.Context, account, module common.Address) (bool, error)
	Owners(ctx context.Context, account common.Address) ([]common.Address, error)
	Guardians(ctx context.Context, recoveryModule, account common.Address) ([]common.Address, error)
	FeeData(ctx context.Context) (*FeeData, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// TokenInfo describes an ERC-20 token.
type TokenInfo struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Backend is the subset of ethclient.Client used by Client.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

var _ Reader = (*Client)(nil)

// Client implements Reader over JSON-RPC. Every failure is an ErrNetwork.
type Client struct {
	chainID uint64
	backend Backend
	logger  *log.Logger
}

// Dial connects to the chain's RPC endpoint.
func Dial(ctx context.Context, desc types.ChainDescriptor) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, desc.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d rpc: %v: %w", desc.ChainID, err, types.ErrNetwork)
	}
	return NewClient(desc.ChainID, ec), nil
}

func NewClient(chainID uint64, backend Backend) *Client {
	return &Client{
		chainID: chainID,
		backend: backend,
		logger:  log.NewLogger("chain").WithChain(chainID),
	}
}

func (c *Client) call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, c.networkError(method, err)
	}
	values, err := contractABI.Unpack(method, output)
	if err != nil {
		return nil, c.networkError(method, err)
	}
	if len(values) != 1 {
		return nil, c.networkError(method, fmt.Errorf("got %d return values", len(values)))
	}
	return values, nil
}

func (c *Client) networkError(what string, err error) error {
	c.logger.Debug().Str("call", what).Err(err).Msg("rpc read failed")
	return fmt.Errorf("chain %d %s: %v: %w", c.chainID, what, err, types.ErrNetwork)
}

// Nonce reads getNonce(account, key) from the EntryPoint.
func (c *Client) Nonce(ctx context.Context, entryPoint, account common.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = new(big.Int)
	}
	values, err := c.call(ctx, entryPoint, EntryPointABI, "getNonce", account, key)
	if err != nil {
		return nil, err
	}
	nonce, ok := values[0].(*big.Int)
	if !ok {
		return nil, c.networkError("getNonce", errors.New("unexpected return type"))
	}
	return nonce, nil
}

// IsDeployed reports whether account has code.
func (c *Client) IsDeployed(ctx context.Context, account common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, account, nil)
	if err != nil {
		return false, c.networkError("eth_getCode", err)
	}
	return len(code) > 0, nil
}

// IsModuleEnabled reads isModuleEnabled(module) from the Safe. An undeployed account has
// no modules.
func (c *Client) IsModuleEnabled(ctx context.Context, account, module common.Address) (bool, error) {
	deployed, err := c.IsDeployed(ctx, account)
	if err != nil || !deployed {
		return false, err
	}
	values, err := c.call(ctx, account, SafeABI, "isModuleEnabled", module)
	if err != nil {
		return false, err
	}
	enabled, ok := values[0].(bool)
	if !ok {
		return false, c.networkError("isModuleEnabled", errors.New("unexpected return type"))
	}
	return enabled, nil
}

// Owners reads getOwners() from the Safe, in linked list order.
func (c *Client) Owners(ctx context.Context, account common.Address) ([]common.Address, error) {
	values, err := c.call(ctx, account, SafeABI, "getOwners")
	if err != nil {
		return nil, err
	}
	owners, ok := values[0].([]common.Address)
	if !ok {
		return nil, c.networkError("getOwners", errors.New("unexpected return type"))
	}
	return owners, nil
}

// Guardians reads getGuardians(account) from the recovery module.
func (c *Client) Guardians(ctx context.Context, recoveryModule, account common.Address) ([]common.Address, error) {
	values, err := c.call(ctx, recoveryModule, RecoveryModuleABI, "getGuardians", account)
	if err != nil {
		return nil, err
	}
	guardians, ok := values[0].([]common.Address)
	if !ok {
		return nil, c.networkError("getGuardians", errors.New("unexpected return type"))
	}
	return guardians, nil
}

// FeeData suggests fees as maxFee = 2 * baseFee + tip.
func (c *Client) FeeData(ctx context.Context) (*FeeData, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, c.networkError("eth_getBlockByNumber", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, c.networkError("eth_maxPriorityFeePerGas", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return &FeeData{BaseFee: baseFee, MaxPriorityFeePerGas: tip, MaxFeePerGas: maxFee}, nil
}

// Balance reads the account's native balance.
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, c.networkError("eth_getBalance", err)
	}
	return balance, nil
}

// TokenBalance reads balanceOf(account) from an ERC-20 token.
func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	values, err := c.call(ctx, token, ERC20ABI, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, c.networkError("balanceOf", errors.New("unexpected return type"))
	}
	return balance, nil
}

// TokenInfo reads the token's name, symbol and decimals.
func (c *Client) TokenInfo(ctx context.Context, token common.Address) (*TokenInfo, error) {
	info := &TokenInfo{}
	for _, method := range []string{"name", "symbol"} {
		values, err := c.call(ctx, token, ERC20ABI, method)
		if err != nil {
			return nil, err
		}
		v, ok := values[0].(string)
		if !ok {
			return nil, c.networkError(method, errors.New("unexpected return type"))
		}
		if method == "name" {
			info.Name = v
		} else {
			info.Symbol = v
		}
	}
	values, err := c.call(ctx, token, ERC20ABI, "decimals")
	if err != nil {
		return nil, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return nil, c.networkError("decimals", errors.New("unexpected return type"))
	}
	info.Decimals = decimals
	return info, nil
}

// ProxyCreationCode reads the Safe proxy factory's proxy creation code.
func (c *Client) ProxyCreationCode(ctx context.Context, factory common.Address) ([]byte, error) {
	values, err := c.call(ctx, factory, ProxyFactoryABI, "proxyCreationCode")
	if err != nil {
		return nil, err
	}
	code, ok := values[0].([]byte)
	if !ok {
		return nil, c.networkError("proxyCreationCode", errors.New("unexpected return type"))
	}
	return code, nil
}
