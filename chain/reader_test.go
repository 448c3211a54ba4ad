package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	entryPoint = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")
	account    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	module     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	owner      = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type fakeBackend struct {
	code    []byte
	balance *big.Int
	results map[string][]byte
	err     error
	baseFee *big.Int
	tip     *big.Int
}

func (b *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.results[string(call.Data[:4])], nil
}

func (b *fakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return b.code, b.err
}

func (b *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return b.balance, b.err
}

func (b *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &ethtypes.Header{BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return b.tip, b.err
}

func packOutput(t *testing.T, contractABI abi.ABI, method string, values ...interface{}) (string, []byte) {
	out, err := contractABI.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return string(contractABI.Methods[method].ID), out
}

func TestReads(t *testing.T) {
	backend := &fakeBackend{code: []byte{0x60}, balance: big.NewInt(42), results: map[string][]byte{}, baseFee: big.NewInt(10), tip: big.NewInt(3)}
	id, out := packOutput(t, EntryPointABI, "getNonce", big.NewInt(7))
	backend.results[id] = out
	id, out = packOutput(t, SafeABI, "isModuleEnabled", true)
	backend.results[id] = out
	id, out = packOutput(t, SafeABI, "getOwners", []common.Address{owner, account})
	backend.results[id] = out
	id, out = packOutput(t, RecoveryModuleABI, "getGuardians", []common.Address{owner})
	backend.results[id] = out
	id, out = packOutput(t, ERC20ABI, "balanceOf", big.NewInt(5000))
	backend.results[id] = out
	id, out = packOutput(t, ERC20ABI, "name", "USD Coin")
	backend.results[id] = out
	id, out = packOutput(t, ERC20ABI, "symbol", "USDC")
	backend.results[id] = out
	id, out = packOutput(t, ERC20ABI, "decimals", uint8(6))
	backend.results[id] = out
	id, out = packOutput(t, ProxyFactoryABI, "proxyCreationCode", []byte{0x60, 0x80})
	backend.results[id] = out

	client := NewClient(10, backend)
	ctx := context.Background()

	nonce, err := client.Nonce(ctx, entryPoint, account, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), nonce.Int64())

	deployed, err := client.IsDeployed(ctx, account)
	require.NoError(t, err)
	assert.True(t, deployed)

	enabled, err := client.IsModuleEnabled(ctx, account, module)
	require.NoError(t, err)
	assert.True(t, enabled)

	owners, err := client.Owners(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{owner, account}, owners)

	guardians, err := client.Guardians(ctx, module, account)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{owner}, guardians)

	fees, err := client.FeeData(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(23), fees.MaxFeePerGas.Int64())
	assert.Equal(t, int64(3), fees.MaxPriorityFeePerGas.Int64())

	native, err := client.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(42), native.Int64())

	balance, err := client.TokenBalance(ctx, module, account)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance.Int64())

	info, err := client.TokenInfo(ctx, module)
	require.NoError(t, err)
	assert.Equal(t, TokenInfo{Name: "USD Coin", Symbol: "USDC", Decimals: 6}, *info)

	code, err := client.ProxyCreationCode(ctx, module)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)
}

func TestUndeployedHasNoModules(t *testing.T) {
	client := NewClient(1, &fakeBackend{results: map[string][]byte{}})
	enabled, err := client.IsModuleEnabled(context.Background(), account, module)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestFailuresAreNetworkErrors(t *testing.T) {
	client := NewClient(1, &fakeBackend{err: errors.New("connection refused")})
	_, err := client.Nonce(context.Background(), entryPoint, account, big.NewInt(0))
	assert.True(t, errors.Is(err, types.ErrNetwork))
	_, err = client.FeeData(context.Background())
	assert.True(t, errors.Is(err, types.ErrNetwork))
	_, err = client.Balance(context.Background(), account)
	assert.True(t, errors.Is(err, types.ErrNetwork))

	// an empty response cannot be unpacked
	client = NewClient(1, &fakeBackend{results: map[string][]byte{}})
	_, err = client.Owners(context.Background(), account)
	assert.True(t, errors.Is(err, types.ErrNetwork))
}
