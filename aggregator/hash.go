package aggregator

import (
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var serializer = types.MustNewSerializer()

// Hash is the EIP-712 SafeOp digest of op under the Safe 4337 module's domain on op's
// chain: keccak256(0x1901 ‖ domainSeparator ‖ hashStruct(SafeOp)). The signature and any
// local metadata are not part of it.
func Hash(op *types.PendingOperation) (common.Hash, error) {
	domain, err := serializer.DomainSeparator(op.ChainID, op.SafeModule)
	if err != nil {
		return common.Hash{}, err
	}
	structHash, err := serializer.SafeOpStructHash(op)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domain.Bytes(), structHash.Bytes()), nil
}

// HashAll hashes ops in order.
func HashAll(ops []*types.PendingOperation) ([]common.Hash, error) {
	hashes := make([]common.Hash, len(ops))
	for i, op := range ops {
		h, err := Hash(op)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return hashes, nil
}
