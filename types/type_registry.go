package types

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
)

type typeRegistry struct {
	addressTy      abi.Type
	addressSliceTy abi.Type
	bytesTy        abi.Type
	bytes32Ty      abi.Type
	bytes32SliceTy abi.Type
	stringTy       abi.Type
	uint8Ty        abi.Type
	uint256Ty      abi.Type
}

func newTypeRegistry() (*typeRegistry, error) {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	addressSliceTy, err := abi.NewType("address[]", "", nil)
	if err != nil {
		return nil, err
	}
	bytesTy, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return nil, err
	}
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return nil, err
	}
	bytes32SliceTy, err := abi.NewType("bytes32[]", "", nil)
	if err != nil {
		return nil, err
	}
	stringTy, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, err
	}
	uint8Ty, err := abi.NewType("uint8", "", nil)
	if err != nil {
		return nil, err
	}
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}
	return &typeRegistry{
		addressTy:      addressTy,
		addressSliceTy: addressSliceTy,
		bytesTy:        bytesTy,
		bytes32Ty:      bytes32Ty,
		bytes32SliceTy: bytes32SliceTy,
		stringTy:       stringTy,
		uint8Ty:        uint8Ty,
		uint256Ty:      uint256Ty,
	}, nil
}
