package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// ErrSignatureSet is returned when a signature is attached to an operation twice.
var ErrSignatureSet = errors.New("signature already set")

// Call is one call executed by the account.
type Call struct {
	Target  common.Address
	Value   *big.Int
	Payload []byte
}

// PendingOperation is an EIP-4337 v0.7 user operation for a Safe account, unsigned until
// the expanded signature is attached.
type PendingOperation struct {
	ChainID uint64
	Sender  common.Address
	Calls   []Call

	Nonce       *big.Int
	CallData    []byte
	Factory     *common.Address
	FactoryData []byte

	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	Paymaster                     *common.Address
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
	PaymasterData                 []byte

	ValidAfter uint64
	ValidUntil uint64

	EntryPoint common.Address
	SafeModule common.Address

	// SponsorName is display metadata returned by the paymaster. Not hashed.
	SponsorName string

	signature []byte
}

// SetSignature attaches the expanded signature. It can only be done once.
func (op *PendingOperation) SetSignature(sig []byte) error {
	if op.signature != nil {
		return fmt.Errorf("chain %d: %w", op.ChainID, ErrSignatureSet)
	}
	op.signature = common.CopyBytes(sig)
	if op.signature == nil {
		op.signature = []byte{}
	}
	return nil
}

func (op *PendingOperation) Signature() []byte {
	return op.signature
}

func (op *PendingOperation) IsSigned() bool {
	return op.signature != nil
}

// IsInit reports whether this operation deploys the account.
func (op *PendingOperation) IsInit() bool {
	return op.Factory != nil
}

// InitCode is factory ‖ factoryData, or empty for deployed accounts.
func (op *PendingOperation) InitCode() []byte {
	if op.Factory == nil {
		return []byte{}
	}
	out := make([]byte, 0, common.AddressLength+len(op.FactoryData))
	out = append(out, op.Factory.Bytes()...)
	return append(out, op.FactoryData...)
}

// PaymasterAndData is paymaster ‖ verificationGasLimit(16) ‖ postOpGasLimit(16) ‖ data,
// or empty when the operation is not sponsored.
func (op *PendingOperation) PaymasterAndData() []byte {
	if op.Paymaster == nil {
		return []byte{}
	}
	out := make([]byte, 0, common.AddressLength+32+len(op.PaymasterData))
	out = append(out, op.Paymaster.Bytes()...)
	out = append(out, math.PaddedBigBytes(OrZero(op.PaymasterVerificationGasLimit), 16)...)
	out = append(out, math.PaddedBigBytes(OrZero(op.PaymasterPostOpGasLimit), 16)...)
	return append(out, op.PaymasterData...)
}

// Copy returns a deep copy without the signature.
func (op *PendingOperation) Copy() *PendingOperation {
	cpy := *op
	cpy.signature = nil
	cpy.Calls = make([]Call, len(op.Calls))
	for i, c := range op.Calls {
		cpy.Calls[i] = Call{Target: c.Target, Value: copyBig(c.Value), Payload: common.CopyBytes(c.Payload)}
	}
	cpy.Nonce = copyBig(op.Nonce)
	cpy.CallData = common.CopyBytes(op.CallData)
	cpy.FactoryData = common.CopyBytes(op.FactoryData)
	cpy.CallGasLimit = copyBig(op.CallGasLimit)
	cpy.VerificationGasLimit = copyBig(op.VerificationGasLimit)
	cpy.PreVerificationGas = copyBig(op.PreVerificationGas)
	cpy.MaxFeePerGas = copyBig(op.MaxFeePerGas)
	cpy.MaxPriorityFeePerGas = copyBig(op.MaxPriorityFeePerGas)
	cpy.PaymasterVerificationGasLimit = copyBig(op.PaymasterVerificationGasLimit)
	cpy.PaymasterPostOpGasLimit = copyBig(op.PaymasterPostOpGasLimit)
	cpy.PaymasterData = common.CopyBytes(op.PaymasterData)
	if op.Factory != nil {
		f := *op.Factory
		cpy.Factory = &f
	}
	if op.Paymaster != nil {
		p := *op.Paymaster
		cpy.Paymaster = &p
	}
	return &cpy
}

// OrZero returns v, or zero when v is nil.
func OrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
