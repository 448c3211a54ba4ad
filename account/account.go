// Package account derives the counterfactual Safe address of a passkey signer. The same
// setup is deployed on every chain, so the account has one address everywhere.
package account

import (
	"context"
	"fmt"
	"math/big"

	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Setup describes how the Safe proxy for a signer is created.
type Setup struct {
	Factory         common.Address
	Singleton       common.Address
	ModuleSetup     common.Address
	FallbackHandler common.Address
	Modules         []common.Address
	SaltNonce       *big.Int
}

// CodeReader reads the proxy creation code from the factory.
type CodeReader interface {
	ProxyCreationCode(ctx context.Context, factory common.Address) ([]byte, error)
}

// Owner is the Safe owner entry standing for signer.
func Owner(signer types.PublicKey) common.Address {
	return common.BytesToAddress(crypto.Keccak256(
		math.U256Bytes(new(big.Int).Set(types.OrZero(signer.X))),
		math.U256Bytes(new(big.Int).Set(types.OrZero(signer.Y))),
	)[12:])
}

// Initializer is the setup call the proxy runs on deployment: one owner, threshold 1, and
// Modules enabled through ModuleSetup.
func (s Setup) Initializer(serializer *types.Serializer, signer types.PublicKey) ([]byte, error) {
	if signer.IsZero() {
		return nil, fmt.Errorf("account setup: no signer: %w", types.ErrConfig)
	}
	enable, err := serializer.EnableModules(s.Modules)
	if err != nil {
		return nil, err
	}
	return serializer.SafeSetup([]common.Address{Owner(signer)}, big.NewInt(1), s.ModuleSetup, enable, s.FallbackHandler)
}

// FactoryData is the factory call that deploys the account.
func (s Setup) FactoryData(serializer *types.Serializer, signer types.PublicKey) ([]byte, error) {
	initializer, err := s.Initializer(serializer, signer)
	if err != nil {
		return nil, err
	}
	return serializer.CreateProxyWithNonce(s.Singleton, initializer, s.SaltNonce)
}

// Address is the CREATE2 address the factory deploys the proxy to.
func (s Setup) Address(serializer *types.Serializer, signer types.PublicKey, proxyCreationCode []byte) (common.Address, error) {
	if len(proxyCreationCode) == 0 {
		return common.Address{}, fmt.Errorf("account setup: empty proxy creation code: %w", types.ErrConfig)
	}
	initializer, err := s.Initializer(serializer, signer)
	if err != nil {
		return common.Address{}, err
	}
	salt := crypto.Keccak256Hash(
		crypto.Keccak256(initializer),
		math.U256Bytes(new(big.Int).Set(types.OrZero(s.SaltNonce))),
	)
	deployment := append(common.CopyBytes(proxyCreationCode), common.LeftPadBytes(s.Singleton.Bytes(), 32)...)
	return crypto.CreateAddress2(s.Factory, salt, crypto.Keccak256(deployment)), nil
}

// Derive reads the proxy creation code from one chain and returns the signer's account
// address.
func Derive(ctx context.Context, reader CodeReader, setup Setup, signer types.PublicKey) (common.Address, error) {
	code, err := reader.ProxyCreationCode(ctx, setup.Factory)
	if err != nil {
		return common.Address{}, err
	}
	serializer, err := types.NewSerializer()
	if err != nil {
		return common.Address{}, err
	}
	return setup.Address(serializer, signer, code)
}
