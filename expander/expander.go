// Package expander turns the one signature over the aggregate root into a signature each
// chain can verify on its own.
package expander

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/celer-network/go-multichain/aggregator"
	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMalformed     = errors.New("malformed expanded signature")
	ErrWindowChanged = errors.New("validity window differs from the operation")
	ErrNotMember     = errors.New("operation is not committed by the root")
	ErrBadSignature  = errors.New("signature does not verify for the root")
)

var serializer = types.MustNewSerializer()

// Window is the validity window a chain's operation commits to.
type Window struct {
	ValidAfter uint64
	ValidUntil uint64
}

func WindowOf(op *types.PendingOperation) Window {
	return Window{ValidAfter: op.ValidAfter, ValidUntil: op.ValidUntil}
}

// Expand combines the aggregate signature with one chain's inclusion proof. The returned
// value shares nothing with its inputs.
func Expand(sig *credential.Signature, meta *credential.Metadata, signer types.PublicKey, proof types.InclusionProof, window Window) (*types.ExpandedSignature, error) {
	if sig == nil || sig.R == nil || sig.S == nil || meta == nil {
		return nil, fmt.Errorf("%w: missing signature", ErrMalformed)
	}
	if int(proof.Depth) != len(proof.Siblings) {
		return nil, fmt.Errorf("%w: proof depth %d with %d siblings", ErrMalformed, proof.Depth, len(proof.Siblings))
	}
	fields, err := credential.ParseClientDataFields(meta.ClientDataJSON)
	if err != nil {
		return nil, err
	}
	return &types.ExpandedSignature{
		ValidAfter:        window.ValidAfter,
		ValidUntil:        window.ValidUntil,
		Depth:             proof.Depth,
		LeafIndex:         proof.Index,
		Proof:             append([]common.Hash(nil), proof.Siblings...),
		Signer:            types.PublicKey{X: new(big.Int).Set(types.OrZero(signer.X)), Y: new(big.Int).Set(types.OrZero(signer.Y))},
		AuthenticatorData: common.CopyBytes(meta.AuthenticatorData),
		ClientDataFields:  fields,
		R:                 new(big.Int).Set(sig.R),
		S:                 new(big.Int).Set(sig.S),
	}, nil
}

// Encode is the ABI encoding placed in the user operation's signature field.
func Encode(sig *types.ExpandedSignature) ([]byte, error) {
	return sig.Serialize(serializer)
}

// ExpandAll expands and encodes a signature for every operation in parallel. ops[i] must be
// leaf i of agg.
func ExpandAll(ctx context.Context, sig *credential.Signature, meta *credential.Metadata, signer types.PublicKey, agg *aggregator.Commitment, ops []*types.PendingOperation) ([][]byte, error) {
	if len(agg.Proofs) != len(ops) {
		return nil, fmt.Errorf("%d proofs for %d operations", len(agg.Proofs), len(ops))
	}
	blobs := make([][]byte, len(ops))
	g, _ := errgroup.WithContext(ctx)
	for i := range ops {
		i := i
		g.Go(func() error {
			expanded, err := Expand(sig, meta, signer, agg.Proofs[i], WindowOf(ops[i]))
			if err != nil {
				return fmt.Errorf("chain %d: %w", ops[i].ChainID, err)
			}
			blob, err := Encode(expanded)
			if err != nil {
				return fmt.Errorf("chain %d: %w", ops[i].ChainID, err)
			}
			blobs[i] = blob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blobs, nil
}

func Decode(blob []byte) (*types.ExpandedSignature, error) {
	sig, err := serializer.DeserializeExpandedSignature(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if int(sig.Depth) != len(sig.Proof) {
		return nil, fmt.Errorf("%w: depth %d with %d siblings", ErrMalformed, sig.Depth, len(sig.Proof))
	}
	return sig, nil
}

// Verify checks blob for op using only op, blob and root, the way the chain's verifier
// does: the operation's hash must be a leaf of root and the WebAuthn signature must be over
// root.
func Verify(op *types.PendingOperation, blob []byte, root common.Hash) error {
	sig, err := Decode(blob)
	if err != nil {
		return err
	}
	if sig.ValidAfter != op.ValidAfter || sig.ValidUntil != op.ValidUntil {
		return ErrWindowChanged
	}
	leaf, err := aggregator.Hash(op)
	if err != nil {
		return err
	}
	proof := types.InclusionProof{Index: sig.LeafIndex, Depth: sig.Depth, Siblings: sig.Proof}
	if !aggregator.VerifyMembership(leaf, proof, root) {
		return ErrNotMember
	}
	clientData := credential.ClientDataJSON(root, sig.ClientDataFields)
	if !credential.Verify(sig.Signer, sig.AuthenticatorData, clientData, &credential.Signature{R: sig.R, S: sig.S}) {
		return ErrBadSignature
	}
	return nil
}

// DummySignature is a well-formed placeholder of the final signature's size, for gas
// estimation and sponsorship before the real signature exists.
func DummySignature(signer types.PublicKey, depth uint8, window Window) ([]byte, error) {
	word := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	dummy := &types.ExpandedSignature{
		ValidAfter:        window.ValidAfter,
		ValidUntil:        window.ValidUntil,
		Depth:             depth,
		Proof:             make([]common.Hash, depth),
		Signer:            signer,
		AuthenticatorData: make([]byte, 37),
		ClientDataFields:  `"origin":"https://localhost","crossOrigin":false`,
		R:                 word,
		S:                 word,
	}
	for i := range dummy.Proof {
		dummy.Proof[i] = common.BytesToHash(bytes.Repeat([]byte{0xff}, common.HashLength))
	}
	return Encode(dummy)
}
