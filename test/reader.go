package test

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/celer-network/go-multichain/chain"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
)

// FakeReader is an in-memory chain.Reader for one chain.
type FakeReader struct {
	ChainID   uint64
	NextNonce *big.Int
	Deployed  bool
	Modules   map[common.Address]bool
	OwnerList []common.Address
	Guardian  map[common.Address][]common.Address
	Fees      *chain.FeeData
	Balances  map[common.Address]*big.Int

	// Fail makes every read fail with ErrNetwork.
	Fail bool

	lock  sync.Mutex
	reads map[string]int
}

var _ chain.Reader = (*FakeReader)(nil)

func NewFakeReader(chainID uint64) *FakeReader {
	return &FakeReader{
		ChainID:   chainID,
		NextNonce: new(big.Int),
		Deployed:  true,
		Modules:   make(map[common.Address]bool),
		Guardian:  make(map[common.Address][]common.Address),
		Balances:  make(map[common.Address]*big.Int),
		Fees: &chain.FeeData{
			BaseFee:              big.NewInt(1000000000),
			MaxPriorityFeePerGas: big.NewInt(1500000000),
			MaxFeePerGas:         big.NewInt(3500000000),
		},
		reads: make(map[string]int),
	}
}

func (r *FakeReader) read(method string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reads[method]++
	if r.Fail {
		return fmt.Errorf("chain %d %s: connection refused: %w", r.ChainID, method, types.ErrNetwork)
	}
	return nil
}

// Reads returns how often method was called.
func (r *FakeReader) Reads(method string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.reads[method]
}

func (r *FakeReader) Nonce(ctx context.Context, entryPoint, account common.Address, key *big.Int) (*big.Int, error) {
	if err := r.read("getNonce"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(r.NextNonce), nil
}

func (r *FakeReader) IsDeployed(ctx context.Context, account common.Address) (bool, error) {
	if err := r.read("eth_getCode"); err != nil {
		return false, err
	}
	return r.Deployed, nil
}

func (r *FakeReader) IsModuleEnabled(ctx context.Context, account, module common.Address) (bool, error) {
	if err := r.read("isModuleEnabled"); err != nil {
		return false, err
	}
	return r.Deployed && r.Modules[module], nil
}

func (r *FakeReader) Owners(ctx context.Context, account common.Address) ([]common.Address, error) {
	if err := r.read("getOwners"); err != nil {
		return nil, err
	}
	return append([]common.Address(nil), r.OwnerList...), nil
}

func (r *FakeReader) Guardians(ctx context.Context, recoveryModule, account common.Address) ([]common.Address, error) {
	if err := r.read("getGuardians"); err != nil {
		return nil, err
	}
	return append([]common.Address(nil), r.Guardian[account]...), nil
}

func (r *FakeReader) FeeData(ctx context.Context) (*chain.FeeData, error) {
	if err := r.read("feeData"); err != nil {
		return nil, err
	}
	return r.Fees, nil
}

// TokenBalance returns Balances[token], zero when unset.
func (r *FakeReader) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	if err := r.read("balanceOf"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(types.OrZero(r.Balances[token])), nil
}
