package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	methodAddOwnerWithThreshold       = "addOwnerWithThreshold(address,uint256)"
	methodRemoveOwner                 = "removeOwner(address,address,uint256)"
	methodEnableModule                = "enableModule(address)"
	methodAddGuardianWithThreshold    = "addGuardianWithThreshold(address,uint256)"
	methodRevokeGuardianWithThreshold = "revokeGuardianWithThreshold(address,address,uint256)"
	methodTransfer                    = "transfer(address,uint256)"
	methodExecuteUserOp               = "executeUserOp(address,uint256,bytes,uint8)"
	methodMultiSend                   = "multiSend(bytes)"
	methodSetup                       = "setup(address[],uint256,address,bytes,address,address,uint256,address)"
	methodEnableModules               = "enableModules(address[])"
	methodCreateProxyWithNonce        = "createProxyWithNonce(address,bytes,uint256)"
)

const (
	operationCall         uint8 = 0
	operationDelegateCall uint8 = 1
)

// SentinelOwner heads the Safe owner and guardian linked lists.
var SentinelOwner = common.HexToAddress("0x0000000000000000000000000000000000000001")

type method struct {
	selector  []byte
	arguments abi.Arguments
}

func newMethod(signature string, args ...abi.Type) *method {
	arguments := make(abi.Arguments, len(args))
	for i, t := range args {
		arguments[i] = abi.Argument{Type: t}
	}
	return &method{selector: crypto.Keccak256([]byte(signature))[:4], arguments: arguments}
}

func (m *method) pack(values ...interface{}) ([]byte, error) {
	data, err := m.arguments.Pack(values...)
	if err != nil {
		return nil, err
	}
	return append(common.CopyBytes(m.selector), data...), nil
}

func createMethods(r *typeRegistry) map[string]*method {
	return map[string]*method{
		methodAddOwnerWithThreshold:       newMethod(methodAddOwnerWithThreshold, r.addressTy, r.uint256Ty),
		methodRemoveOwner:                 newMethod(methodRemoveOwner, r.addressTy, r.addressTy, r.uint256Ty),
		methodEnableModule:                newMethod(methodEnableModule, r.addressTy),
		methodAddGuardianWithThreshold:    newMethod(methodAddGuardianWithThreshold, r.addressTy, r.uint256Ty),
		methodRevokeGuardianWithThreshold: newMethod(methodRevokeGuardianWithThreshold, r.addressTy, r.addressTy, r.uint256Ty),
		methodTransfer:                    newMethod(methodTransfer, r.addressTy, r.uint256Ty),
		methodExecuteUserOp:               newMethod(methodExecuteUserOp, r.addressTy, r.uint256Ty, r.bytesTy, r.uint8Ty),
		methodMultiSend:                   newMethod(methodMultiSend, r.bytesTy),
		methodSetup: newMethod(methodSetup, r.addressSliceTy, r.uint256Ty, r.addressTy, r.bytesTy,
			r.addressTy, r.addressTy, r.uint256Ty, r.addressTy),
		methodEnableModules:        newMethod(methodEnableModules, r.addressSliceTy),
		methodCreateProxyWithNonce: newMethod(methodCreateProxyWithNonce, r.addressTy, r.bytesTy, r.uint256Ty),
	}
}

func (s *Serializer) packMethod(name string, values ...interface{}) ([]byte, error) {
	data, err := s.methods[name].pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	return data, nil
}

func (s *Serializer) AddOwnerWithThreshold(owner common.Address, threshold *big.Int) ([]byte, error) {
	return s.packMethod(methodAddOwnerWithThreshold, owner, threshold)
}

func (s *Serializer) RemoveOwner(prevOwner, owner common.Address, threshold *big.Int) ([]byte, error) {
	return s.packMethod(methodRemoveOwner, prevOwner, owner, threshold)
}

func (s *Serializer) EnableModule(module common.Address) ([]byte, error) {
	return s.packMethod(methodEnableModule, module)
}

func (s *Serializer) AddGuardianWithThreshold(guardian common.Address, threshold *big.Int) ([]byte, error) {
	return s.packMethod(methodAddGuardianWithThreshold, guardian, threshold)
}

func (s *Serializer) RevokeGuardianWithThreshold(prevGuardian, guardian common.Address, threshold *big.Int) ([]byte, error) {
	return s.packMethod(methodRevokeGuardianWithThreshold, prevGuardian, guardian, threshold)
}

// ERC20Transfer encodes transfer(to, amount) for a token contract.
func (s *Serializer) ERC20Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	return s.packMethod(methodTransfer, to, amount)
}

// SafeSetup encodes the Safe initializer. Payment fields are always zero.
func (s *Serializer) SafeSetup(owners []common.Address, threshold *big.Int, to common.Address, data []byte, fallbackHandler common.Address) ([]byte, error) {
	return s.packMethod(methodSetup, owners, threshold, to, nonNil(data), fallbackHandler,
		common.Address{}, new(big.Int), common.Address{})
}

// EnableModules encodes the module setup contract's enableModules, delegatecalled from setup.
func (s *Serializer) EnableModules(modules []common.Address) ([]byte, error) {
	return s.packMethod(methodEnableModules, modules)
}

func (s *Serializer) CreateProxyWithNonce(singleton common.Address, initializer []byte, saltNonce *big.Int) ([]byte, error) {
	return s.packMethod(methodCreateProxyWithNonce, singleton, nonNil(initializer), OrZero(saltNonce))
}

// EncodeCallData encodes calls as Safe4337Module executeUserOp call data. A single call is
// executed directly; several calls are batched through MultiSend with a delegatecall.
func (s *Serializer) EncodeCallData(calls []Call, multiSend common.Address) ([]byte, error) {
	switch len(calls) {
	case 0:
		return nil, fmt.Errorf("EncodeCallData: no calls: %w", ErrIntent)
	case 1:
		c := calls[0]
		return s.packMethod(methodExecuteUserOp, c.Target, OrZero(c.Value), nonNil(c.Payload), operationCall)
	}
	batch, err := s.packMethod(methodMultiSend, PackMultiSendTransactions(calls))
	if err != nil {
		return nil, err
	}
	return s.packMethod(methodExecuteUserOp, multiSend, new(big.Int), batch, operationDelegateCall)
}

// PackMultiSendTransactions is the MultiSend transaction encoding:
// operation(1) ‖ to(20) ‖ value(32) ‖ dataLength(32) ‖ data, concatenated.
func PackMultiSendTransactions(calls []Call) []byte {
	var out []byte
	for _, c := range calls {
		out = append(out, operationCall)
		out = append(out, c.Target.Bytes()...)
		out = append(out, math.U256Bytes(new(big.Int).Set(OrZero(c.Value)))...)
		out = append(out, math.U256Bytes(big.NewInt(int64(len(c.Payload))))...)
		out = append(out, c.Payload...)
	}
	return out
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
