package builder

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultGasMultiplier = 120

// Config is shared by every chain's build. Addresses are the same on every chain.
type Config struct {
	EntryPoint     common.Address
	SafeModule     common.Address
	MultiSend      common.Address
	RecoveryModule common.Address

	// Factory and FactoryData deploy the account when it has no code yet.
	Factory     *common.Address
	FactoryData []byte

	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	// Fee fields are read from the chain when nil.
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	// EstimateGas replaces the gas limits with the bundler's estimate.
	EstimateGas bool
	// Percentages applied to preVerificationGas and verificationGasLimit.
	PreVerificationGasMultiplier   uint64
	VerificationGasLimitMultiplier uint64

	// ValidFor bounds validUntil. Zero means no expiry.
	ValidFor time.Duration

	// ChainCount sizes the placeholder signature sent for estimation and sponsorship.
	ChainCount int
}

func DefaultConfig() Config {
	return Config{
		CallGasLimit:                   big.NewInt(200000),
		VerificationGasLimit:           big.NewInt(500000),
		PreVerificationGas:             big.NewInt(60000),
		PreVerificationGasMultiplier:   DefaultGasMultiplier,
		VerificationGasLimitMultiplier: DefaultGasMultiplier,
		ChainCount:                     2,
	}
}
