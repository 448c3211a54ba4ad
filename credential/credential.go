// Package credential is the signing boundary: a WebAuthn P-256 credential signs the
// aggregate root once.
package credential

import (
	"context"
	"math/big"

	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
)

// Signature is a raw P-256 signature.
type Signature struct {
	R *big.Int
	S *big.Int
}

// Metadata is what the authenticator signed besides the challenge.
type Metadata struct {
	AuthenticatorData []byte
	ClientDataJSON    string
}

// Credential references a registered passkey.
type Credential struct {
	ID        string          `json:"id"`
	PublicKey types.PublicKey `json:"pubkeyCoordinates"`
}

// CreateParams are the relying party parameters of a new credential.
type CreateParams struct {
	Name string
	RPID string
}

// Provider produces WebAuthn assertions. Sign returns ErrUserCancelled when the user
// declines or the context ends before the user answers.
type Provider interface {
	Sign(ctx context.Context, challenge common.Hash) (*Signature, *Metadata, error)
	CreateCredential(ctx context.Context, params CreateParams) (*Credential, error)
}
