package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	solsha3 "github.com/miguelmota/go-solidity-sha3"
)

const (
	safeOpType = "SafeOp(address safe,uint256 nonce,bytes initCode,bytes callData," +
		"uint128 verificationGasLimit,uint128 callGasLimit,uint256 preVerificationGas," +
		"uint128 maxPriorityFeePerGas,uint128 maxFeePerGas,bytes paymasterAndData," +
		"uint48 validAfter,uint48 validUntil,address entryPoint)"
	domainType = "EIP712Domain(uint256 chainId,address verifyingContract)"
)

var (
	safeOpTypeHash = common.BytesToHash(solsha3.SoliditySHA3(solsha3.String(safeOpType)))
	domainTypeHash = common.BytesToHash(solsha3.SoliditySHA3(solsha3.String(domainType)))
)

// Struct members are all one word wide, so uint128 and uint48 fields encode as uint256.
func createSafeOpArguments(r *typeRegistry) abi.Arguments {
	return abi.Arguments([]abi.Argument{
		{Name: "typeHash", Type: r.bytes32Ty},
		{Name: "safe", Type: r.addressTy},
		{Name: "nonce", Type: r.uint256Ty},
		{Name: "initCode", Type: r.bytes32Ty},
		{Name: "callData", Type: r.bytes32Ty},
		{Name: "verificationGasLimit", Type: r.uint256Ty},
		{Name: "callGasLimit", Type: r.uint256Ty},
		{Name: "preVerificationGas", Type: r.uint256Ty},
		{Name: "maxPriorityFeePerGas", Type: r.uint256Ty},
		{Name: "maxFeePerGas", Type: r.uint256Ty},
		{Name: "paymasterAndData", Type: r.bytes32Ty},
		{Name: "validAfter", Type: r.uint256Ty},
		{Name: "validUntil", Type: r.uint256Ty},
		{Name: "entryPoint", Type: r.addressTy},
	})
}

func createDomainArguments(r *typeRegistry) abi.Arguments {
	return abi.Arguments([]abi.Argument{
		{Name: "typeHash", Type: r.bytes32Ty},
		{Name: "chainId", Type: r.uint256Ty},
		{Name: "verifyingContract", Type: r.addressTy},
	})
}

// SafeOpStructHash is hashStruct(SafeOp) for op.
func (s *Serializer) SafeOpStructHash(op *PendingOperation) (common.Hash, error) {
	data, err := s.safeOpArguments.Pack(
		safeOpTypeHash,
		op.Sender,
		OrZero(op.Nonce),
		crypto.Keccak256Hash(op.InitCode()),
		crypto.Keccak256Hash(op.CallData),
		OrZero(op.VerificationGasLimit),
		OrZero(op.CallGasLimit),
		OrZero(op.PreVerificationGas),
		OrZero(op.MaxPriorityFeePerGas),
		OrZero(op.MaxFeePerGas),
		crypto.Keccak256Hash(op.PaymasterAndData()),
		new(big.Int).SetUint64(op.ValidAfter),
		new(big.Int).SetUint64(op.ValidUntil),
		op.EntryPoint,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("SafeOpStructHash chain %d: %w", op.ChainID, err)
	}
	return crypto.Keccak256Hash(data), nil
}

// DomainSeparator is the EIP-712 domain of the Safe 4337 module on chainID.
func (s *Serializer) DomainSeparator(chainID uint64, module common.Address) (common.Hash, error) {
	data, err := s.domainArguments.Pack(domainTypeHash, new(big.Int).SetUint64(chainID), module)
	if err != nil {
		return common.Hash{}, fmt.Errorf("DomainSeparator chain %d: %w", chainID, err)
	}
	return crypto.Keccak256Hash(data), nil
}
