package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ExpandedSignature is the per-chain signature: the one WebAuthn signature over the
// aggregate root plus this chain's inclusion proof and the signer's key.
type ExpandedSignature struct {
	ValidAfter        uint64
	ValidUntil        uint64
	Depth             uint8
	LeafIndex         uint64
	Proof             []common.Hash
	Signer            PublicKey
	AuthenticatorData []byte
	ClientDataFields  string
	R                 *big.Int
	S                 *big.Int
}

func createExpandedSignatureArguments(r *typeRegistry) abi.Arguments {
	return abi.Arguments([]abi.Argument{
		{Name: "validAfter", Type: r.uint256Ty},
		{Name: "validUntil", Type: r.uint256Ty},
		{Name: "depth", Type: r.uint256Ty},
		{Name: "leafIndex", Type: r.uint256Ty},
		{Name: "proof", Type: r.bytes32SliceTy},
		{Name: "x", Type: r.uint256Ty},
		{Name: "y", Type: r.uint256Ty},
		{Name: "authenticatorData", Type: r.bytesTy},
		{Name: "clientDataFields", Type: r.stringTy},
		{Name: "r", Type: r.uint256Ty},
		{Name: "s", Type: r.uint256Ty},
	})
}

func (sig *ExpandedSignature) Serialize(s *Serializer) ([]byte, error) {
	proof := make([][32]byte, len(sig.Proof))
	for i, p := range sig.Proof {
		proof[i] = p
	}
	data, err := s.expandedSignatureArguments.Pack(
		new(big.Int).SetUint64(sig.ValidAfter),
		new(big.Int).SetUint64(sig.ValidUntil),
		new(big.Int).SetUint64(uint64(sig.Depth)),
		new(big.Int).SetUint64(sig.LeafIndex),
		proof,
		OrZero(sig.Signer.X),
		OrZero(sig.Signer.Y),
		nonNil(sig.AuthenticatorData),
		sig.ClientDataFields,
		OrZero(sig.R),
		OrZero(sig.S),
	)
	if err != nil {
		return nil, fmt.Errorf("Serialize ExpandedSignature: %w", err)
	}
	return data, nil
}

func (s *Serializer) DeserializeExpandedSignature(data []byte) (*ExpandedSignature, error) {
	values, err := s.expandedSignatureArguments.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("Deserialize ExpandedSignature: %w", err)
	}
	if len(values) != len(s.expandedSignatureArguments) {
		return nil, fmt.Errorf("Deserialize ExpandedSignature: got %d values", len(values))
	}
	ints := make(map[int]*big.Int)
	for _, i := range []int{0, 1, 2, 3, 5, 6, 9, 10} {
		v, ok := values[i].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("Deserialize ExpandedSignature: field %d is %T", i, values[i])
		}
		ints[i] = v
	}
	rawProof, ok := values[4].([][32]byte)
	if !ok {
		return nil, fmt.Errorf("Deserialize ExpandedSignature: proof is %T", values[4])
	}
	authData, ok := values[7].([]byte)
	if !ok {
		return nil, fmt.Errorf("Deserialize ExpandedSignature: authenticatorData is %T", values[7])
	}
	fields, ok := values[8].(string)
	if !ok {
		return nil, fmt.Errorf("Deserialize ExpandedSignature: clientDataFields is %T", values[8])
	}
	if !ints[0].IsUint64() || !ints[1].IsUint64() || !ints[3].IsUint64() || ints[2].Cmp(big.NewInt(255)) > 0 {
		return nil, fmt.Errorf("Deserialize ExpandedSignature: integer field out of range")
	}
	proof := make([]common.Hash, len(rawProof))
	for i, p := range rawProof {
		proof[i] = p
	}
	return &ExpandedSignature{
		ValidAfter:        ints[0].Uint64(),
		ValidUntil:        ints[1].Uint64(),
		Depth:             uint8(ints[2].Uint64()),
		LeafIndex:         ints[3].Uint64(),
		Proof:             proof,
		Signer:            PublicKey{X: ints[5], Y: ints[6]},
		AuthenticatorData: authData,
		ClientDataFields:  fields,
		R:                 ints[9],
		S:                 ints[10],
	}, nil
}
